//go:build sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			title,
			description,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsDrop(conn *sql.DB) error {
	if _, err := conn.Exec(`DROP TABLE IF EXISTS entries_fts`); err != nil {
		return fmt.Errorf("search: drop fts: %w", err)
	}
	return nil
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM entries_fts`); err != nil {
		return fmt.Errorf("search: clear fts: %w", err)
	}
	return nil
}

// ftsInsert indexes the entry at pos; the fts rowid is the mirror's pos.
func ftsInsert(tx *sql.Tx, pos int, title, description string) error {
	_, err := tx.Exec(`INSERT INTO entries_fts (rowid, title, description) VALUES (?, ?, ?)`, pos, title, description)
	if err != nil {
		return fmt.Errorf("search: insert fts: %w", err)
	}
	return nil
}

// matchExpr quotes every term so user input cannot inject FTS syntax.
func matchExpr(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// Search performs an FTS5 full-text search and returns hits with snippets.
func (db *DB) Search(query string, limit int) ([]Result, error) {
	expr := matchExpr(query)
	if expr == "" {
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT e.id,
		       e.title,
		       e.date,
		       e.day_key,
		       snippet(entries_fts, 1, '<b>', '</b>', '...', 32)
		FROM entries_fts
		JOIN entries e ON e.pos = entries_fts.rowid
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, expr, limit)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Date, &r.DayKey, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
