package calendar

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/jera/internal/daykey"
)

// Grid dimensions. Column 0 is Sunday.
const (
	GridRows  = 6
	GridCols  = 7
	GridCells = GridRows * GridCols
)

// Date is a calendar date without a clock or zone.
//
// In JSON the month is 0-based like Grid.Month and ViewState.Month, so a
// payload uses a single convention.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

type dateJSON struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 0-based
	Day   int `json:"day"`
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateJSON{Year: d.Year, Month: int(d.Month) - 1, Day: d.Day})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var v dateJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = Date{Year: v.Year, Month: time.Month(v.Month + 1), Day: v.Day}
	return nil
}

// Cell is one position of the month grid.
type Cell struct {
	Date           Date          `json:"date"`
	DayKey         daykey.DayKey `json:"dayKey"`
	InCurrentMonth bool          `json:"inCurrentMonth"`
	IsToday        bool          `json:"isToday"`
	IsSelected     bool          `json:"isSelected"`
	EntryCount     int           `json:"entryCount"`
}

// Grid is the 42-cell layout of one month, row-major.
type Grid struct {
	Year  int             `json:"year"`
	Month int             `json:"month"` // 0-based
	Label string          `json:"label"`
	Cells [GridCells]Cell `json:"cells"`
}

// Rows returns the cells split into weeks.
func (g Grid) Rows() [][]Cell {
	rows := make([][]Cell, GridRows)
	for r := range rows {
		rows[r] = g.Cells[r*GridCols : (r+1)*GridCols]
	}
	return rows
}

// MonthLabel formats a 0-based month as "March 2024".
func MonthLabel(year, monthIndex int) string {
	year, monthIndex = daykey.Normalize(year, monthIndex)
	return fmt.Sprintf("%s %d", time.Month(monthIndex+1), year)
}

// BuildGrid lays out the month (year, monthIndex) as 42 cells starting on the
// Sunday on or before the 1st. Leading cells come from the previous month and
// trailing cells from the next, wrapping the year in both directions.
// The result depends only on its arguments.
func BuildGrid(year, monthIndex int, ix *Index, today, selected daykey.DayKey) Grid {
	year, monthIndex = daykey.Normalize(year, monthIndex)

	first := time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, time.UTC)
	firstWeekday := int(first.Weekday())
	daysThisMonth := daykey.DaysInMonth(year, monthIndex)

	prevYear, prevMonth := daykey.Normalize(year, monthIndex-1)
	nextYear, nextMonth := daykey.Normalize(year, monthIndex+1)
	daysPrevMonth := daykey.DaysInMonth(prevYear, prevMonth)

	g := Grid{Year: year, Month: monthIndex, Label: MonthLabel(year, monthIndex)}
	for idx := 0; idx < GridCells; idx++ {
		dayNum := idx - firstWeekday + 1

		var d Date
		inMonth := false
		switch {
		case dayNum <= 0:
			d = Date{Year: prevYear, Month: time.Month(prevMonth + 1), Day: daysPrevMonth + dayNum}
		case dayNum > daysThisMonth:
			d = Date{Year: nextYear, Month: time.Month(nextMonth + 1), Day: dayNum - daysThisMonth}
		default:
			d = Date{Year: year, Month: time.Month(monthIndex + 1), Day: dayNum}
			inMonth = true
		}

		k := daykey.FromDate(d.Year, d.Month, d.Day)
		g.Cells[idx] = Cell{
			Date:           d,
			DayKey:         k,
			InCurrentMonth: inMonth,
			IsToday:        today != "" && k == today,
			IsSelected:     selected != "" && k == selected,
			EntryCount:     ix.Count(k),
		}
	}
	return g
}
