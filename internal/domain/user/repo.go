package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetContact returns the delivery addresses for a user.
	GetContact(ctx context.Context, id uuid.UUID) (Contact, error)
}
