// Package calendar groups entries by local day, lays out month grids and
// tracks which day the list view is filtered to.
package calendar

import (
	"sort"
	"time"

	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
)

// Index maps each DayKey to the entries that fall on it, in source order.
// It is rebuilt wholesale on every collection change and never mutated after
// BuildIndex returns.
type Index struct {
	buckets map[daykey.DayKey][]models.Entry
	invalid []string
	total   int
}

// BuildIndex groups entries by the local day of their Date in loc.
// Entries whose Date cannot be parsed are left out of every bucket and their
// ids are reported by Invalid.
func BuildIndex(entries []models.Entry, loc *time.Location) *Index {
	ix := &Index{buckets: make(map[daykey.DayKey][]models.Entry)}
	for _, e := range entries {
		k, err := daykey.ToDayKey(e.Date, loc)
		if err != nil {
			ix.invalid = append(ix.invalid, e.ID)
			continue
		}
		ix.buckets[k] = append(ix.buckets[k], e)
		ix.total++
	}
	return ix
}

// Lookup returns the entries on day k, or nil.
func (ix *Index) Lookup(k daykey.DayKey) []models.Entry {
	if ix == nil {
		return nil
	}
	return ix.buckets[k]
}

// Count returns the number of entries on day k.
func (ix *Index) Count(k daykey.DayKey) int {
	return len(ix.Lookup(k))
}

// Keys returns every day that has at least one entry, ascending.
func (ix *Index) Keys() []daykey.DayKey {
	if ix == nil {
		return nil
	}
	keys := make([]daykey.DayKey, 0, len(ix.buckets))
	for k := range ix.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len is the number of indexed entries (invalid ones excluded).
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.total
}

// Invalid returns the ids of entries skipped because their date did not parse.
func (ix *Index) Invalid() []string {
	if ix == nil {
		return nil
	}
	return ix.invalid
}
