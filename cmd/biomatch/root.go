package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// newRootCmd represents the base command when called without any subcommands
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "biomatch",
		Short: "Match bio-samples against a synthetic donor pool",
		Long: `Match bio-samples against a synthetic donor pool.

Samples are scored on five factors (HLA, blood type, genetic markers, age,
geography), blended with a donor-pool baseline and ranked by composite score.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(newMatchCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSetupCmd())
	return root
}
