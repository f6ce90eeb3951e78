package search

import (
	"time"

	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
)

// Mirror is what the rest of the service needs from the search database.
// Consumers depend on this rather than *DB so tests can substitute it.
type Mirror interface {
	Reindex(entries []models.Entry, loc *time.Location) error
	Search(query string, limit int) ([]Result, error)
	CountByDay(from, to daykey.DayKey) (map[daykey.DayKey]int, error)
	Close() error
}

var _ Mirror = (*DB)(nil)
