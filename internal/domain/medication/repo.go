package medication

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no medication matches the lookup.
var ErrNotFound = errors.New("medication not found")

type Repository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	// SoftDelete clears is_active. Existing reminders are left untouched;
	// the generator stops producing new ones.
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool, limit, offset int) ([]*Medication, int, error)
	// ListActive returns every active medication, for the nightly generation
	// batch.
	ListActive(ctx context.Context) ([]*Medication, error)
	// DecrementStock atomically takes one dose off the medication's stock,
	// never going below zero. It reports the remaining stock and whether the
	// stock was already depleted before the call. Callers go through the
	// adherence ledger, not this method directly.
	DecrementStock(ctx context.Context, id uuid.UUID) (remaining int, depleted bool, err error)
}
