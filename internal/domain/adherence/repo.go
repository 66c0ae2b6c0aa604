package adherence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("streak not found")

// StatsFilter narrows the outcome window stats are computed over.
type StatsFilter struct {
	MedicationID *uuid.UUID
	From         *time.Time
	To           *time.Time
}

type Repository interface {
	// IncrementStreak bumps the medication's streak by one, creating the
	// record if needed, and folds the new value into the longest streak.
	// Returns the streak after the bump.
	IncrementStreak(ctx context.Context, medicationID, userID uuid.UUID) (int, error)

	// ResetStreak zeroes the current streak, preserving the longest.
	ResetStreak(ctx context.Context, medicationID, userID uuid.UUID) error

	GetStreak(ctx context.Context, medicationID uuid.UUID) (*StreakRecord, error)
	ListStreaks(ctx context.Context, userID uuid.UUID) ([]*StreakRecord, error)

	// Stats counts resolved reminder outcomes for the user in the window.
	Stats(ctx context.Context, userID uuid.UUID, f StatsFilter) (*Stats, error)
}
