package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biomatch-server/internal/setup"
)

// newSetupCmd registers the stdio MCP server with a desktop MCP client
func newSetupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "client config file (defaults to the platform location)")

	var opts setup.Options
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Add or update the biomatch MCP server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = configPath
			entry, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s -> %s\n", setup.ServerName, entry.Command)
			return nil
		},
	}
	installCmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "path to the mcp-server binary")
	installCmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "data directory passed as "+setup.DataDirEnv)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the registration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := setup.Inspect(configPath)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}

	cmd.AddCommand(installCmd, statusCmd)
	return cmd
}
