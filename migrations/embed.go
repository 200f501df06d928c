// Package migrations holds the schema history of the AssetForge
// database, from the legacy per-type layout to the unified inventory
// schema.
//
// Declarative steps are SQL files embedded into the binary; structural
// rewrites that SQL cannot express safely (row re-pointing, backfills
// with validation) are procedural Go steps registered with the database
// package. Both kinds share one version namespace and one ledger.
package migrations

import (
	"embed"

	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	// The embed directive above captures all .sql files in this directory.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
