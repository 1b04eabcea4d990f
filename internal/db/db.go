package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/platewatch/internal/httputil"
)

type DB struct {
	*sql.DB

	path string
}

// OpenDB opens the SQLite database at path and applies the connection
// pragmas. It does not touch the schema; migrations manage that.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps readers unblocked while detection requests write plate
	// reads; busy_timeout covers short locks held by the admin console.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database at path and applies all pending migrations.
// Tests and dev mode use it; production startup goes through
// NewDBWithMigrationCheck so operators apply migrations deliberately.
func NewDB(path string) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrations, err := getMigrationsFS()
	if err != nil {
		database.Close()
		return nil, err
	}

	if err := database.MigrateUp(migrations); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

// NewDBWithMigrationCheck opens the database and verifies its schema
// version against the bundled migrations. When autoMigrate is true any
// pending migrations are applied; otherwise an out-of-date schema is an
// error and the caller is expected to run `platewatch migrate up`.
func NewDBWithMigrationCheck(path string, autoMigrate bool) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrations, err := getMigrationsFS()
	if err != nil {
		database.Close()
		return nil, err
	}

	if autoMigrate {
		if err := database.MigrateUp(migrations); err != nil {
			database.Close()
			return nil, err
		}
		return database, nil
	}

	if _, err := database.CheckAndPromptMigrations(migrations); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

// StoreStatus summarizes the record store for the status endpoint.
type StoreStatus struct {
	Status          string `json:"status"`
	TotalVehicles   int    `json:"total_vehicles"`
	TotalViolations int    `json:"total_violations"`
}

// Status reports connectivity and entity totals.
func (db *DB) Status() (*StoreStatus, error) {
	vehicles, err := db.CountVehicles()
	if err != nil {
		return nil, err
	}

	violations, err := db.CountViolations()
	if err != nil {
		return nil, err
	}

	return &StoreStatus{
		Status:          "connected",
		TotalVehicles:   vehicles,
		TotalViolations: violations,
	}, nil
}

// TableStats holds size and row-count information for a single table.
type TableStats struct {
	Name     string  `json:"name"`
	RowCount int64   `json:"row_count"`
	SizeMB   float64 `json:"size_mb"`
}

// DatabaseStats holds size information for the whole database file.
type DatabaseStats struct {
	TotalSizeMB float64      `json:"total_size_mb"`
	Tables      []TableStats `json:"tables"`
}

// GetDatabaseStats reports the database file size and per-table row
// counts. Per-table sizes come from the dbstat virtual table and are
// zero when the build does not include it.
func (db *DB) GetDatabaseStats() (*DatabaseStats, error) {
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("failed to get page size: %w", err)
	}

	stats := &DatabaseStats{
		TotalSizeMB: float64(pageCount*pageSize) / (1024 * 1024),
	}

	rows, err := db.Query(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tableNames = append(tableNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	for _, name := range tableNames {
		var count int64
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", name)).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", name, err)
		}

		var sizeBytes sql.NullInt64
		// dbstat is optional; ignore the error when the vtab is absent.
		_ = db.QueryRow("SELECT SUM(pgsize) FROM dbstat WHERE name = ?", name).Scan(&sizeBytes)

		stats.Tables = append(stats.Tables, TableStats{
			Name:     name,
			RowCount: count,
			SizeMB:   float64(sizeBytes.Int64) / (1024 * 1024),
		})
	}

	return stats, nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB(fmt.Sprintf("sqlite://%s", db.path), db.DB, &tailsql.DBOptions{
		Label: "Plate DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("db-stats", "Database size and row counts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.GetDatabaseStats()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to collect database stats: %v", err), http.StatusInternalServerError)
			return
		}
		httputil.WriteJSONOK(w, stats)
	}))

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		// Send the backup file to the client
		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := gzipWriter.Write([]byte{}); err != nil {
			// Need to write something to initialize the gzip header
			http.Error(w, fmt.Sprintf("Failed to initialize gzip writer: %v", err), http.StatusInternalServerError)
			return
		}

		// Copy the backup file content to the gzip writer
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
