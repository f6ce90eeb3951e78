// Package models defines the domain types for Jera.
package models

// ReminderUnit is the unit of a reminder offset.
type ReminderUnit string

// Known reminder units.
const (
	UnitMinutes ReminderUnit = "minutes"
	UnitHours   ReminderUnit = "hours"
	UnitDays    ReminderUnit = "days"
	UnitWeeks   ReminderUnit = "weeks"
)

// ReminderUnits lists every unit accepted on input.
var ReminderUnits = []ReminderUnit{UnitMinutes, UnitHours, UnitDays, UnitWeeks}

// Known reports whether u is one of ReminderUnits.
func (u ReminderUnit) Known() bool {
	for _, k := range ReminderUnits {
		if u == k {
			return true
		}
	}
	return false
}

// Reminder is reminder metadata attached to an entry. It is stored, never fired.
type Reminder struct {
	Amount float64      `json:"amount"`
	Unit   ReminderUnit `json:"unit"`
}

// Entry is a user-created dated record.
//
// Date is kept exactly as entered (for example "2024-03-01T23:50") and is
// interpreted on the local clock of the configured location.
type Entry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Reminder    *Reminder `json:"reminder"`
	CreatedAt   string    `json:"createdAt"`
}

// Clone returns a copy that shares no pointers with e.
func (e Entry) Clone() Entry {
	if e.Reminder != nil {
		r := *e.Reminder
		e.Reminder = &r
	}
	return e
}

// CloneAll copies a collection so callers can hold it across event boundaries.
func CloneAll(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
