package medlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("medication log not found")

// ListFilter narrows log list reads.
type ListFilter struct {
	MedicationID *uuid.UUID
	Action       *Action
	From         *time.Time
	To           *time.Time
}

type Repository interface {
	Create(ctx context.Context, l *MedicationLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicationLog, error)
	ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*MedicationLog, int, error)
}
