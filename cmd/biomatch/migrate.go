package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/biomatch-server/internal/config"
	"github.com/biomatch-server/internal/database"
)

// newMigrateCmd manages the PostgreSQL review queue schema
func newMigrateCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BIOMATCH")
	_ = v.BindEnv("database-url", "BIOMATCH_DATABASE_URL")
	_ = v.BindEnv("path", "BIOMATCH_MIGRATIONS_PATH")

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the review queue schema",
		Long: `Apply or roll back the PostgreSQL review queue schema.

Migrations are embedded in the binary; --path overrides them with a directory.`,
	}
	cmd.PersistentFlags().String("database-url", "", "postgres connection URL (env BIOMATCH_DATABASE_URL)")
	cmd.PersistentFlags().String("path", "", "directory of migration files")
	_ = v.BindPFlag("database-url", cmd.PersistentFlags().Lookup("database-url"))
	_ = v.BindPFlag("path", cmd.PersistentFlags().Lookup("path"))

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newRunner(cmd, v)
			if err != nil {
				return err
			}
			defer runner.Close()
			return runner.Up()
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last --steps migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newRunner(cmd, v)
			if err != nil {
				return err
			}
			defer runner.Close()
			return runner.Down(steps)
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func newRunner(cmd *cobra.Command, v *viper.Viper) (*database.MigrationRunner, error) {
	databaseURL := v.GetString("database-url")
	if databaseURL == "" {
		return nil, fmt.Errorf("--database-url or BIOMATCH_DATABASE_URL is required")
	}

	logger := cliLogger(cmd, config.LoadLiteConfig())
	if os.Getenv("BIOMATCH_LOG_LEVEL") == "" {
		logger.SetLevel(logrus.InfoLevel)
	}
	return database.NewMigrationRunner(databaseURL, v.GetString("path"), logger)
}
