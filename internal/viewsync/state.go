// Package viewsync keeps the calendar grid and the entry list consistent with
// the entry collection and the user's navigation.
//
// Every change goes through one pure function, Reduce, producing a new State;
// Derive turns a State into the View that gets rendered. Syncer runs both on a
// single goroutine so every render reflects exactly one snapshot.
package viewsync

import (
	"time"

	"github.com/starford/jera/internal/calendar"
	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
)

// State is an immutable snapshot. Reduce returns a new one instead of editing it.
type State struct {
	Entries []models.Entry
	Index   *calendar.Index
	View    calendar.ViewState
}

// Event is anything that can change the State.
type Event interface{ isEvent() }

// ReplaceEntries swaps in a new collection: a committed mutation or an
// external store change.
type ReplaceEntries struct{ Entries []models.Entry }

// SelectDay selects a day, or deselects it when it is already selected.
type SelectDay struct{ Key daykey.DayKey }

// ClearSelection drops the selection.
type ClearSelection struct{}

// NavigateMonth moves the viewed month by Delta.
type NavigateMonth struct{ Delta int }

// NavigateTo views a specific 0-based month.
type NavigateTo struct{ Year, Month int }

// GoToday views the month containing Now.
type GoToday struct{ Now time.Time }

// Refresh changes nothing but forces a new render, e.g. after midnight.
type Refresh struct{}

func (ReplaceEntries) isEvent() {}
func (SelectDay) isEvent()      {}
func (ClearSelection) isEvent() {}
func (NavigateMonth) isEvent()  {}
func (NavigateTo) isEvent()     {}
func (GoToday) isEvent()        {}
func (Refresh) isEvent()        {}

// Initial is the startup state: no entries, current month, no selection.
func Initial(now time.Time, loc *time.Location) State {
	return State{
		Entries: []models.Entry{},
		Index:   calendar.BuildIndex(nil, loc),
		View:    calendar.NewViewState(now, loc),
	}
}

// Reduce applies ev to s. The index is rebuilt only when the entries change.
func Reduce(s State, ev Event, loc *time.Location) State {
	switch e := ev.(type) {
	case ReplaceEntries:
		entries := models.CloneAll(e.Entries)
		s.Entries = entries
		s.Index = calendar.BuildIndex(entries, loc)
	case SelectDay:
		s.View = s.View.SelectDay(e.Key)
	case ClearSelection:
		s.View = s.View.ClearSelection()
	case NavigateMonth:
		s.View = s.View.NavigateMonth(e.Delta)
	case NavigateTo:
		s.View = s.View.NavigateTo(e.Year, e.Month)
	case GoToday:
		s.View = s.View.Today(e.Now, loc)
	case Refresh:
	}
	return s
}

// View is the declarative description a presentation layer paints.
type View struct {
	Revision     uint64             `json:"revision"`
	Today        daykey.DayKey      `json:"today"`
	State        calendar.ViewState `json:"state"`
	Grid         calendar.Grid      `json:"grid"`
	Entries      []models.Entry     `json:"entries"`
	EmptyMessage string             `json:"emptyMessage,omitempty"`
	Total        int                `json:"total"`
	Invalid      []string           `json:"invalid,omitempty"`
}

// Derive computes the visible list, then the grid, for s as seen on day today.
func Derive(s State, today daykey.DayKey, loc *time.Location) View {
	visible := calendar.SortNewestFirst(s.View.VisibleEntries(s.Entries, s.Index), loc)
	grid := calendar.BuildGrid(s.View.Year, s.View.Month, s.Index, today, s.View.Selected)

	v := View{
		Today:   today,
		State:   s.View,
		Grid:    grid,
		Entries: visible,
		Total:   len(s.Entries),
		Invalid: s.Index.Invalid(),
	}
	if len(visible) == 0 {
		v.EmptyMessage = s.View.EmptyMessage()
	}
	return v
}
