// AngelaMos | 2026
// migrations.go

package usage

import (
	"embed"

	"github.com/viralforge/forge/internal/core"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the schema for usage_records and usage_counters plus
// the SQL functions both remote stores call. table names the goose version
// table.
func Migrations(table string) core.MigrationSource {
	return core.MigrationSource{
		FS:    migrationFS,
		Dir:   "migrations",
		Table: table,
	}
}
