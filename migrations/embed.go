// Package migrations embeds the SQL migrations into the binary so the
// controller can migrate its database without files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(migrationsFS, ".")
}
