// Package db opens the earworm cache database.
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName    = "earworm"
	dbFileName = "cache.db"
)

const currentSchemaVersion = 1

// DefaultPath returns the cache database path under the XDG cache directory.
func DefaultPath() (string, error) {
	return xdg.CacheFile(filepath.Join(appName, dbFileName))
}

// Open opens (creating if needed) the database at path and initializes the
// schema. Use ":memory:" for a throwaway database.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers, which is all a single-player cache needs.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS catalog_tracks (
			catalog TEXT NOT NULL,
			context_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			track_id TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT NOT NULL DEFAULT '',
			preview_url TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (catalog, context_key, position)
		);

		CREATE INDEX IF NOT EXISTS idx_catalog_tracks_fetched ON catalog_tracks(fetched_at);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, currentSchemaVersion)
	return err
}

// WithTx executes fn within a transaction.
// It handles Begin, Rollback on error, and Commit on success.
func WithTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
