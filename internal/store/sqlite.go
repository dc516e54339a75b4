// Package store persists recognition results as a scan history in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection. Writes are serialized.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		confidence_avg REAL NOT NULL DEFAULT 0,
		processing_time_ms INTEGER NOT NULL DEFAULT 0,
		warnings TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scan_items (
		scan_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		type TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		raw TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		bbox TEXT NOT NULL DEFAULT '[0,0,0,0]',
		warnings TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (scan_id, position),
		FOREIGN KEY (scan_id) REFERENCES scans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_scans_user_id ON scans(user_id);
	CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
