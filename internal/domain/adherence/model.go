// Package adherence keeps the derived bookkeeping that reminder outcomes
// drive: per-medication streaks, stock movement and adherence statistics.
package adherence

import (
	"time"

	"github.com/google/uuid"
)

// StreakRecord tracks consecutive on-time taken doses for one medication.
type StreakRecord struct {
	MedicationID  uuid.UUID `db:"medication_id" json:"medication_id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	CurrentStreak int       `db:"current_streak" json:"current_streak"`
	LongestStreak int       `db:"longest_streak" json:"longest_streak"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Stats summarizes reminder outcomes over a window. The rate counts taken
// against taken plus missed; skips are deliberate and excluded from the
// denominator.
type Stats struct {
	TakenCount   int     `json:"taken_count"`
	SkippedCount int     `json:"skipped_count"`
	MissedCount  int     `json:"missed_count"`
	Rate         float64 `json:"adherence_rate"`
}

// ComputeRate derives the adherence rate from raw counts. No observations
// yields zero.
func ComputeRate(taken, missed int) float64 {
	if taken+missed == 0 {
		return 0
	}
	return float64(taken) / float64(taken+missed)
}
