package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dannyude/medication-reminder-api/internal/domain/user"
)

// ErrNotFound is returned when no reminder matches the lookup.
var ErrNotFound = errors.New("reminder not found")

// TransitionUpdate carries the fields written alongside a status change.
// Nil fields are left untouched.
type TransitionUpdate struct {
	SentChannel *string
	SentAt      *time.Time
	ResolvedAt  *time.Time
	Notes       *string
	SideEffects *string
}

// DispatchItem is a due reminder joined with what the dispatcher needs to
// build and address the notification.
type DispatchItem struct {
	Reminder
	MedicationName string
	Dosage         string
	Contact        user.Contact
}

// ListFilter narrows reminder list reads.
type ListFilter struct {
	Status *Status
	From   *time.Time
	To     *time.Time
}

type Repository interface {
	// CreateBatch inserts reminders in pending state, silently skipping rows
	// that collide with the (medication_id, scheduled_time) uniqueness
	// constraint. Returns the count actually inserted.
	CreateBatch(ctx context.Context, reminders []*Reminder) (int, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error)

	// ExistingInstants returns the set of already-covered scheduled instants
	// for a medication within [from, to), keyed by Unix seconds.
	ExistingInstants(ctx context.Context, medicationID uuid.UUID, from, to time.Time) (map[int64]bool, error)

	// ClaimDue claims pending reminders due at or before now and newer than
	// retryFloor, oldest first, bounded by limit. A claim stamps claimed_at in
	// the same statement that selects the rows, and rows claimed within the
	// lease window are not handed out again, so concurrent engine instances
	// get disjoint batches. The lease only lasts until it expires; the
	// conditional Transition remains the correctness backstop after that.
	ClaimDue(ctx context.Context, now, retryFloor time.Time, lease time.Duration, limit int) ([]*DispatchItem, error)

	// ListStale returns pending reminders scheduled before pendingBefore and
	// sent reminders scheduled before sentBefore.
	ListStale(ctx context.Context, pendingBefore, sentBefore time.Time, limit int) ([]*Reminder, error)

	// Transition atomically moves a reminder from one status to another. A
	// precondition mismatch returns *StaleStateError carrying the currently
	// persisted status.
	Transition(ctx context.Context, id uuid.UUID, from, to Status, upd TransitionUpdate) error

	ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Reminder, int, error)
}
