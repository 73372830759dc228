// AngelaMos | 2026
// migrate.go

package core

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// MigrationSource is a set of goose SQL migrations living under Dir in FS.
type MigrationSource struct {
	FS    fs.FS
	Dir   string
	Table string
}

// Migrate applies every pending migration in src.
func (d *Database) Migrate(
	ctx context.Context,
	src MigrationSource,
	logger *slog.Logger,
) error {
	if err := configureGoose(src, logger); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, d.DB.DB, src.Dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (d *Database) MigrateDown(
	ctx context.Context,
	src MigrationSource,
	logger *slog.Logger,
) error {
	if err := configureGoose(src, logger); err != nil {
		return err
	}

	if err := goose.DownContext(ctx, d.DB.DB, src.Dir); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	return nil
}

// MigrationVersion returns the current schema version.
func (d *Database) MigrationVersion(
	ctx context.Context,
	src MigrationSource,
	logger *slog.Logger,
) (int64, error) {
	if err := configureGoose(src, logger); err != nil {
		return 0, err
	}

	v, err := goose.GetDBVersionContext(ctx, d.DB.DB)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func configureGoose(src MigrationSource, logger *slog.Logger) error {
	goose.SetBaseFS(src.FS)
	goose.SetLogger(gooseLogger{logger: logger})
	if src.Table != "" {
		goose.SetTableName(src.Table)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	return nil
}

// gooseLogger routes goose's printf-style output through slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), Component("migrate"))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...), Component("migrate"))
}
