package search

import (
	"fmt"
	"time"

	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
)

// Result is one search hit.
type Result struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Date    string        `json:"date"`
	DayKey  daykey.DayKey `json:"dayKey,omitempty"`
	Snippet string        `json:"snippet"`
}

// Reindex replaces the mirror with entries in one transaction. Entries whose
// date does not parse are kept with an empty day_key, and repeated ids are
// kept as separate rows so counts match the collection.
func (db *DB) Reindex(entries []models.Entry, loc *time.Location) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("search: clear: %w", err)
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO entries (pos, id, title, description, date, day_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("search: prepare insert: %w", err)
	}
	defer stmt.Close()

	for pos, e := range entries {
		k, _ := daykey.ToDayKey(e.Date, loc)
		if _, err := stmt.Exec(pos, e.ID, e.Title, e.Description, e.Date, string(k), e.CreatedAt); err != nil {
			return fmt.Errorf("search: insert %s: %w", e.ID, err)
		}
		if err := ftsInsert(tx, pos, e.Title, e.Description); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CountByDay returns entry counts per day for days in [from, to].
func (db *DB) CountByDay(from, to daykey.DayKey) (map[daykey.DayKey]int, error) {
	rows, err := db.conn.Query(`
		SELECT day_key, count(*)
		FROM entries
		WHERE day_key != '' AND day_key BETWEEN ? AND ?
		GROUP BY day_key
	`, string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("search: count by day: %w", err)
	}
	defer rows.Close()

	out := make(map[daykey.DayKey]int)
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[daykey.DayKey(k)] = n
	}
	return out, rows.Err()
}

// Len returns the number of mirrored entries.
func (db *DB) Len() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("search: count: %w", err)
	}
	return n, nil
}
