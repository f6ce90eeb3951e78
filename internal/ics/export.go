// Package ics renders the entry collection as an iCalendar feed. Reminders
// become DISPLAY alarms; nothing is scheduled or fired here.
package ics

import (
	"fmt"
	"io"
	"math"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
)

// Write serializes entries to w as a VCALENDAR and returns how many events it
// contains. Entries whose date does not parse are left out.
func Write(w io.Writer, entries []models.Entry, loc *time.Location, now time.Time) (int, error) {
	if loc == nil {
		loc = time.Local
	}
	cal := ical.NewCalendarFor("jera")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName("Jera")
	cal.SetXWRTimezone(loc.String())

	n := 0
	for _, e := range entries {
		at, err := daykey.ParseTimestamp(e.Date, loc)
		if err != nil {
			continue
		}
		ev := cal.AddEvent(e.ID)
		ev.SetDtStampTime(now)
		if isDateOnly(e.Date) {
			ev.SetAllDayStartAt(at)
			ev.SetAllDayEndAt(at.AddDate(0, 0, 1))
		} else {
			ev.SetStartAt(at)
		}
		ev.SetSummary(e.Title)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		if created, err := time.Parse(time.RFC3339Nano, e.CreatedAt); err == nil {
			ev.SetCreatedTime(created)
		}

		if trigger, ok := Trigger(e.Reminder); ok {
			alarm := ev.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger(trigger)
			alarm.SetProperty(ical.ComponentPropertyDescription, e.Title)
		}
		n++
	}

	if err := cal.SerializeTo(w); err != nil {
		return 0, fmt.Errorf("ics: serialize: %w", err)
	}
	return n, nil
}

func isDateOnly(s string) bool {
	_, err := time.Parse(daykey.Layout, s)
	return err == nil
}

// Trigger renders a reminder as a negative ISO 8601 duration relative to the
// event start. Fractional amounts are expressed in whole minutes.
func Trigger(r *models.Reminder) (string, bool) {
	if r == nil || r.Amount <= 0 || !r.Unit.Known() {
		return "", false
	}
	if r.Amount != math.Trunc(r.Amount) {
		return fmt.Sprintf("-PT%dM", int64(math.Round(r.Amount*minutesPer(r.Unit)))), true
	}
	n := int64(r.Amount)
	switch r.Unit {
	case models.UnitMinutes:
		return fmt.Sprintf("-PT%dM", n), true
	case models.UnitHours:
		return fmt.Sprintf("-PT%dH", n), true
	case models.UnitDays:
		return fmt.Sprintf("-P%dD", n), true
	default:
		return fmt.Sprintf("-P%dW", n), true
	}
}

func minutesPer(u models.ReminderUnit) float64 {
	switch u {
	case models.UnitHours:
		return 60
	case models.UnitDays:
		return 24 * 60
	case models.UnitWeeks:
		return 7 * 24 * 60
	default:
		return 1
	}
}
