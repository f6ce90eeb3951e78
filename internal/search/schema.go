// Package search mirrors the entry collection into SQLite for text search and
// per-day counts. FTS5 is used when built with the sqlite_fts5 tag; otherwise
// queries fall back to LIKE.
package search

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is stored in PRAGMA user_version. The mirror is rebuilt from
// the store on every commit, so an older schema is simply dropped.
const schemaVersion = 2

// Rows are keyed by position in the stored collection, not by id: a hand
// edited store may repeat an id and the mirror must still hold every entry.
const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	pos         INTEGER PRIMARY KEY,
	id          TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	date        TEXT NOT NULL DEFAULT '',
	day_key     TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_entries_day_key ON entries(day_key);
CREATE INDEX IF NOT EXISTS idx_entries_id ON entries(id);
`

// DB wraps a sql.DB holding the entry mirror.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("search: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var v int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return fmt.Errorf("search: read schema version: %w", err)
	}
	if v >= schemaVersion {
		return nil
	}
	if _, err := conn.Exec(`DROP TABLE IF EXISTS entries`); err != nil {
		return fmt.Errorf("search: drop old schema: %w", err)
	}
	if err := ftsDrop(conn); err != nil {
		return err
	}
	if _, err := conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("search: set schema version: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
