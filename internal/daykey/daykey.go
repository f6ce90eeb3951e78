// Package daykey derives canonical local calendar-day identifiers from timestamps.
//
// A DayKey is always computed from the local year, month and day of an instant
// in a given location. Formatting UTC components instead would move entries
// near midnight onto the neighbouring day.
package daykey

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/jera/internal/apperr"
)

// Layout is the DayKey format.
const Layout = "2006-01-02"

// DayKey identifies one local calendar day as YYYY-MM-DD.
type DayKey string

// zoneless layouts are read on the local clock of the target location.
var zoneless = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	Layout,
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

// ParseTimestamp parses ts as an instant and returns it in loc.
// Offset-bearing RFC 3339 strings are converted into loc; zone-less strings are
// taken as wall-clock time in loc. A nil loc means time.Local.
func ParseTimestamp(ts string, loc *time.Location) (time.Time, error) {
	loc = location(loc)
	s := strings.TrimSpace(ts)
	if s == "" {
		return time.Time{}, fmt.Errorf("daykey: empty timestamp: %w", apperr.ErrInvalidDate)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range zoneless {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("daykey: parse %q: %w", ts, apperr.ErrInvalidDate)
}

// ToDayKey parses ts and returns the DayKey of its local day in loc.
func ToDayKey(ts string, loc *time.Location) (DayKey, error) {
	t, err := ParseTimestamp(ts, loc)
	if err != nil {
		return "", err
	}
	return FromDate(t.Year(), t.Month(), t.Day()), nil
}

// FromTime returns the DayKey of t's local day in loc.
func FromTime(t time.Time, loc *time.Location) DayKey {
	t = t.In(location(loc))
	return FromDate(t.Year(), t.Month(), t.Day())
}

// FromDate formats a calendar date. Components are used as given.
func FromDate(year int, month time.Month, day int) DayKey {
	return DayKey(fmt.Sprintf("%04d-%02d-%02d", year, int(month), day))
}

// Date returns the calendar components of k.
func (k DayKey) Date() (year int, month time.Month, day int, err error) {
	t, perr := time.Parse(Layout, string(k))
	if perr != nil || t.Format(Layout) != string(k) {
		return 0, 0, 0, fmt.Errorf("daykey: malformed key %q: %w", k, apperr.ErrInvalidDate)
	}
	return t.Year(), t.Month(), t.Day(), nil
}

// Valid reports whether k names a real calendar day in canonical form.
func (k DayKey) Valid() bool {
	_, _, _, err := k.Date()
	return err == nil
}

func (k DayKey) String() string { return string(k) }

// DaysInMonth returns the number of days of the 0-based monthIndex in year.
// monthIndex may be out of range (-1, 12, ...); it is normalized the same way
// time.Date normalizes months, so -1 is December of the previous year.
func DaysInMonth(year, monthIndex int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(monthIndex+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// Normalize folds an out-of-range 0-based monthIndex into year.
func Normalize(year, monthIndex int) (int, int) {
	total := year*12 + monthIndex
	y, m := total/12, total%12
	if m < 0 {
		m += 12
		y--
	}
	return y, m
}
