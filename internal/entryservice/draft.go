package entryservice

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
)

// ReminderDraft is the reminder part of the entry form.
type ReminderDraft struct {
	Amount float64             `json:"amount"`
	Unit   models.ReminderUnit `json:"unit"`
}

// Validate validates the reminder draft.
func (r ReminderDraft) Validate() error {
	units := make([]any, len(models.ReminderUnits))
	for i, u := range models.ReminderUnits {
		units[i] = u
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Amount, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&r.Unit, validation.Required, validation.In(units...)),
	)
}

// Draft is unvalidated entry form input.
type Draft struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Date        string         `json:"date"`
	Reminder    *ReminderDraft `json:"reminder,omitempty"`
}

func (d Draft) trimmed() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Date = strings.TrimSpace(d.Date)
	return d
}

// Validate trims the draft and checks it. Errors wrap apperr.ErrValidation.
func (d Draft) Validate(loc *time.Location) error {
	d = d.trimmed()
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required),
		validation.Field(&d.Date, validation.Required, validation.By(parseableIn(loc))),
		validation.Field(&d.Reminder),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	return nil
}

func parseableIn(loc *time.Location) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if _, err := daykey.ParseTimestamp(s, loc); err != nil {
			return validation.NewError("validation_date_invalid", "must be a valid date")
		}
		return nil
	}
}

func (r *ReminderDraft) model() *models.Reminder {
	if r == nil {
		return nil
	}
	return &models.Reminder{Amount: r.Amount, Unit: r.Unit}
}
