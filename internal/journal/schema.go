// Package journal provides the SQLite-backed history of sync cycles.
package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cycles (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	source            TEXT NOT NULL DEFAULT '',
	direction         TEXT NOT NULL,
	started_at        DATETIME NOT NULL,
	finished_at       DATETIME NOT NULL,
	updated_entries   INTEGER NOT NULL DEFAULT 0,
	wrote_timeline    INTEGER NOT NULL DEFAULT 0,
	drift             INTEGER NOT NULL DEFAULT 0,
	error             TEXT NOT NULL DEFAULT '',
	timeline_checksum TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cycle_warnings (
	cycle_id INTEGER NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
	seq      INTEGER NOT NULL,
	message  TEXT NOT NULL,
	PRIMARY KEY (cycle_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
`

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
