// Package migrations embeds SQL migration files into the binary.
//
// The smartfridge binary runs migrations without the SQL files being
// present on the device filesystem.
package migrations

import (
	"embed"

	"github.com/nerrad567/smart-fridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(migrationsFS, ".")
}
