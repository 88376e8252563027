// migrate applies the embedded SQL migrations: go run ./cmd/migrate [up|down|version].
// Without a subcommand it migrates up.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kennarddh/asset-management-sub000/internal/config"
	"github.com/kennarddh/asset-management-sub000/internal/db/migrate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, migrate.Up)
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  func(cmd *cobra.Command, args []string) error { return run(cmd, migrate.Up) },
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			RunE:  func(cmd *cobra.Command, args []string) error { return run(cmd, migrate.Down) },
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				dsn, err := databaseURL()
				if err != nil {
					return err
				}
				return printVersion(cmd, dsn)
			},
		},
	)
	return root
}

func run(cmd *cobra.Command, dir migrate.Direction) error {
	dsn, err := databaseURL()
	if err != nil {
		return err
	}
	if err := migrate.Run(dsn, dir); err != nil {
		return err
	}
	return printVersion(cmd, dsn)
}

func databaseURL() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return "", migrate.ErrEmptyDSN
	}
	return cfg.DatabaseURL, nil
}

func printVersion(cmd *cobra.Command, dsn string) error {
	version, dirty, err := migrate.Version(dsn)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	cmd.Printf("schema at version %d (dirty=%t)\n", version, dirty)
	return nil
}
