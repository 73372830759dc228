// AngelaMos | 2026
// migrate.go

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/usage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the usage schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrations(cmd, func(db *core.Database, src core.MigrationSource, log *slog.Logger) error {
			return db.Migrate(cmd.Context(), src, log)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrations(cmd, func(db *core.Database, src core.MigrationSource, log *slog.Logger) error {
			return db.MigrateDown(cmd.Context(), src, log)
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrations(cmd, func(db *core.Database, src core.MigrationSource, log *slog.Logger) error {
			version, err := db.MigrationVersion(cmd.Context(), src, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (table %s)\n", version, src.Table)
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withMigrations(
	cmd *cobra.Command,
	fn func(*core.Database, core.MigrationSource, *slog.Logger) error,
) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("database close error", core.Err(err))
		}
	}()

	return fn(db, usage.Migrations(cfg.Database.MigrationsTable), logger)
}
