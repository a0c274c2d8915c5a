package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/biomatch-server/internal/config"
	"github.com/biomatch-server/internal/service"
)

// newModelsCmd lists the scoring model registry
func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "models",
		Short:   "List the scoring models stamped on match results",
		Aliases: []string{"ls-models"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lite := config.LoadLiteConfig()
			engine := service.NewEngine(lite.MatchingConfig(), cliLogger(cmd, lite))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tACCURACY")
			for _, m := range engine.ListModels() {
				fmt.Fprintf(w, "%s\t%s\t%.2f\n", m.Name, m.Type, m.Accuracy)
			}
			return w.Flush()
		},
	}
}
