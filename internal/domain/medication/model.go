package medication

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Frequency describes how often a medication is taken.
type Frequency string

const (
	OnceDaily       Frequency = "once_daily"
	TwiceDaily      Frequency = "twice_daily"
	ThreeTimesDaily Frequency = "three_times_daily"
	FourTimesDaily  Frequency = "four_times_daily"
	EveryXHours     Frequency = "every_x_hours"
	AsNeeded        Frequency = "as_needed"
	Custom          Frequency = "custom"
)

var validFrequencies = map[Frequency]bool{
	OnceDaily:       true,
	TwiceDaily:      true,
	ThreeTimesDaily: true,
	FourTimesDaily:  true,
	EveryXHours:     true,
	AsNeeded:        true,
	Custom:          true,
}

// Valid reports whether f is a recognized frequency.
func (f Frequency) Valid() bool { return validFrequencies[f] }

// defaultTimes are the times-of-day used when a daily frequency has no
// explicit reminder times configured.
var defaultTimes = map[Frequency][]string{
	OnceDaily:       {"08:00"},
	TwiceDaily:      {"08:00", "20:00"},
	ThreeTimesDaily: {"08:00", "14:00", "20:00"},
	FourTimesDaily:  {"06:00", "12:00", "18:00", "22:00"},
}

// Medication maps to the medications table.
type Medication struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`

	Name         string  `db:"name" json:"name"`
	Dosage       string  `db:"dosage" json:"dosage"`
	Instructions *string `db:"instructions" json:"instructions,omitempty"`

	Frequency      Frequency `db:"frequency_type" json:"frequency_type"`
	FrequencyValue *int      `db:"frequency_value" json:"frequency_value,omitempty"`
	ReminderTimes  []string  `db:"reminder_times" json:"reminder_times,omitempty"`
	Timezone       string    `db:"timezone" json:"timezone"`

	StartAt time.Time  `db:"start_datetime" json:"start_datetime"`
	EndAt   *time.Time `db:"end_datetime" json:"end_datetime,omitempty"`

	CurrentStock      int `db:"current_stock" json:"current_stock"`
	LowStockThreshold int `db:"low_stock_threshold" json:"low_stock_threshold"`

	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return t, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return t, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Schedulable reports whether the medication's frequency produces scheduled
// reminders. AS_NEEDED medications are logged ad hoc and never scheduled.
func (m *Medication) Schedulable() bool {
	return m.Frequency != AsNeeded
}

// DailyTimes resolves the medication's configured times-of-day, falling back
// to the per-frequency defaults when none are set. Returns nil for interval
// and as-needed frequencies.
func (m *Medication) DailyTimes() ([]TimeOfDay, error) {
	switch m.Frequency {
	case EveryXHours, AsNeeded:
		return nil, nil
	}

	raw := m.ReminderTimes
	if len(raw) == 0 {
		raw = defaultTimes[m.Frequency]
	}

	times := make([]TimeOfDay, 0, len(raw))
	for _, s := range raw {
		t, err := ParseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, nil
}

// Location resolves the medication's IANA timezone, falling back to UTC when
// the stored name is unknown.
func (m *Medication) Location() *time.Location {
	if m.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidationError reports a malformed schedule or medication field. The
// medication is left unmodified when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the medication's fields and schedule specification.
func (m *Medication) Validate() error {
	if m.Name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if m.Dosage == "" {
		return &ValidationError{Field: "dosage", Reason: "required"}
	}
	if !m.Frequency.Valid() {
		return &ValidationError{Field: "frequency_type", Reason: fmt.Sprintf("unknown frequency %q", m.Frequency)}
	}
	if m.Frequency == EveryXHours {
		if m.FrequencyValue == nil || *m.FrequencyValue < 1 || *m.FrequencyValue > 24 {
			return &ValidationError{Field: "frequency_value", Reason: "must be between 1 and 24 hours"}
		}
	}
	if m.Frequency == Custom && len(m.ReminderTimes) == 0 {
		return &ValidationError{Field: "reminder_times", Reason: "required for custom frequency"}
	}
	for _, s := range m.ReminderTimes {
		if _, err := ParseTimeOfDay(s); err != nil {
			return &ValidationError{Field: "reminder_times", Reason: err.Error()}
		}
	}
	if m.Timezone != "" {
		if _, err := time.LoadLocation(m.Timezone); err != nil {
			return &ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown timezone %q", m.Timezone)}
		}
	}
	if m.StartAt.IsZero() {
		return &ValidationError{Field: "start_datetime", Reason: "required"}
	}
	if m.EndAt != nil && !m.EndAt.After(m.StartAt) {
		return &ValidationError{Field: "end_datetime", Reason: "must be after start_datetime"}
	}
	if m.CurrentStock < 0 {
		return &ValidationError{Field: "current_stock", Reason: "must not be negative"}
	}
	if m.LowStockThreshold < 0 {
		return &ValidationError{Field: "low_stock_threshold", Reason: "must not be negative"}
	}
	return nil
}
