package db

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed migrations
var migrationsFS embed.FS

// DevMode, when set before the database is opened, reads migrations
// from the source tree instead of the embedded copy so new migration
// files are picked up without rebuilding.
var DevMode = false

const devMigrationsDir = "internal/db/migrations"

// getMigrationsFS returns the filesystem migrations are loaded from.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		if info, err := os.Stat(devMigrationsDir); err == nil && info.IsDir() {
			return os.DirFS(devMigrationsDir), nil
		}
		// Not running from the repository root; fall back to the
		// embedded copy.
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	return sub, nil
}
