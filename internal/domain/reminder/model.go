package reminder

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is a reminder lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusTaken   Status = "taken"
	StatusSkipped Status = "skipped"
	StatusMissed  Status = "missed"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusTaken, StatusSkipped, StatusMissed:
		return true
	}
	return false
}

// transitions is the full state machine. pending -> sent (dispatch),
// sent -> taken/skipped (user), pending/sent -> missed (reconciliation).
var transitions = map[Status][]Status{
	StatusPending: {StatusSent, StatusMissed},
	StatusSent:    {StatusTaken, StatusSkipped, StatusMissed},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Reminder maps to the reminders table. One row per (medication, scheduled
// instant); the scheduled instant is absolute, resolved against the
// medication's timezone at generation time.
type Reminder struct {
	ID           uuid.UUID `db:"id" json:"id"`
	MedicationID uuid.UUID `db:"medication_id" json:"medication_id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`

	ScheduledTime time.Time `db:"scheduled_time" json:"scheduled_time"`
	Status        Status    `db:"status" json:"status"`

	// SentChannel records which channel delivered the notification.
	SentChannel *string    `db:"sent_channel" json:"sent_channel,omitempty"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`

	Notes       *string `db:"notes" json:"notes,omitempty"`
	SideEffects *string `db:"side_effects" json:"side_effects,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StaleStateError reports a transition whose expected-state precondition no
// longer matched the persisted row. Callers recover by re-reading; the
// Current field tells the API layer what outcome won.
type StaleStateError struct {
	ReminderID uuid.UUID
	Expected   Status
	Current    Status
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("reminder %s: expected status %s, found %s",
		e.ReminderID, e.Expected, e.Current)
}

// InvalidTransitionError reports a transition the state machine does not
// allow, regardless of races.
type InvalidTransitionError struct {
	ReminderID uuid.UUID
	From       Status
	To         Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("reminder %s: transition %s -> %s not allowed",
		e.ReminderID, e.From, e.To)
}
