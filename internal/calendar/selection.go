package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
)

// ViewState is the session-local month being viewed and the selected day.
// Transitions return a new value; the receiver is never modified.
type ViewState struct {
	Year     int           `json:"viewedYear"`
	Month    int           `json:"viewedMonth"` // 0-11
	Selected daykey.DayKey `json:"selectedDayKey,omitempty"`
}

// NewViewState starts on the month containing now with nothing selected.
func NewViewState(now time.Time, loc *time.Location) ViewState {
	return ViewState{}.Today(now, loc)
}

// HasSelection reports whether a day is selected.
func (v ViewState) HasSelection() bool { return v.Selected != "" }

// SelectDay selects k, or clears the selection when k is already selected.
func (v ViewState) SelectDay(k daykey.DayKey) ViewState {
	if v.Selected == k {
		v.Selected = ""
		return v
	}
	v.Selected = k
	return v
}

// ClearSelection drops any selection.
func (v ViewState) ClearSelection() ViewState {
	v.Selected = ""
	return v
}

// NavigateMonth moves the viewed month by delta months. Selection is kept.
func (v ViewState) NavigateMonth(delta int) ViewState {
	v.Year, v.Month = daykey.Normalize(v.Year, v.Month+delta)
	return v
}

// NavigateTo views the given 0-based month. Selection is kept.
func (v ViewState) NavigateTo(year, monthIndex int) ViewState {
	v.Year, v.Month = daykey.Normalize(year, monthIndex)
	return v
}

// Today views the month containing now in loc. Selection is kept.
func (v ViewState) Today(now time.Time, loc *time.Location) ViewState {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	return v.NavigateTo(now.Year(), int(now.Month())-1)
}

// VisibleEntries returns what the list view shows: every entry when nothing
// is selected, otherwise the selected day's bucket (possibly empty).
// The result is in index order; use SortNewestFirst before display.
func (v ViewState) VisibleEntries(all []models.Entry, ix *Index) []models.Entry {
	if !v.HasSelection() {
		return all
	}
	bucket := ix.Lookup(v.Selected)
	if bucket == nil {
		return []models.Entry{}
	}
	return bucket
}

// EmptyMessage is the list placeholder shown when VisibleEntries is empty.
func (v ViewState) EmptyMessage() string {
	if v.HasSelection() {
		return fmt.Sprintf("No entries for %s", v.Selected)
	}
	return "No entries yet."
}

// SortNewestFirst returns a copy of entries ordered by timestamp, latest
// first. Ties keep their input order; entries with unparseable dates go last.
func SortNewestFirst(entries []models.Entry, loc *time.Location) []models.Entry {
	type keyed struct {
		e  models.Entry
		at time.Time
		ok bool
	}
	ks := make([]keyed, len(entries))
	for i, e := range entries {
		at, err := daykey.ParseTimestamp(e.Date, loc)
		ks[i] = keyed{e: e, at: at, ok: err == nil}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].ok != ks[j].ok {
			return ks[i].ok
		}
		return ks[i].at.After(ks[j].at)
	})
	out := make([]models.Entry, len(ks))
	for i, k := range ks {
		out[i] = k.e
	}
	return out
}
