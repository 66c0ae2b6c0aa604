// Package medlog records the outcomes of medication doses. Rows are written
// when a reminder is resolved by the user and when a dose is logged ad hoc,
// outside any reminder.
package medlog

import (
	"time"

	"github.com/google/uuid"
)

// Action is what happened to a dose.
type Action string

const (
	ActionTaken   Action = "taken"
	ActionSkipped Action = "skipped"
)

func (a Action) Valid() bool {
	return a == ActionTaken || a == ActionSkipped
}

// MedicationLog maps to the medication_logs table. ReminderID is nil for
// ad hoc entries.
type MedicationLog struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	MedicationID uuid.UUID  `db:"medication_id" json:"medication_id"`
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	ReminderID   *uuid.UUID `db:"reminder_id" json:"reminder_id,omitempty"`

	Action      Action    `db:"action" json:"action"`
	TakenAt     time.Time `db:"taken_at" json:"taken_at"`
	DosageTaken *string   `db:"dosage_taken" json:"dosage_taken,omitempty"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	SideEffects *string   `db:"side_effects" json:"side_effects,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
