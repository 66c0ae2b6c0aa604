package adherence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dannyude/medication-reminder-api/internal/domain/medication"
)

// LowStockNotifier is called when a stock movement crosses the medication's
// low-stock threshold.
type LowStockNotifier func(ctx context.Context, userID uuid.UUID, medicationName string, remaining int)

// Ledger applies the side effects of resolved doses: stock movement on taken
// doses and streak accounting per outcome. It runs inside the caller's
// transaction except for the low-stock notification, which is fired
// asynchronously so a slow channel cannot hold a database transaction open.
type Ledger struct {
	streaks Repository
	meds    medication.Repository
	notify  LowStockNotifier
	logger  zerolog.Logger

	// onTimeTolerance bounds how late a taken dose may be and still extend
	// the streak.
	onTimeTolerance time.Duration

	// skippedBreaksStreak controls whether a deliberate skip resets the
	// streak or leaves it untouched.
	skippedBreaksStreak bool
}

func NewLedger(streaks Repository, meds medication.Repository, notify LowStockNotifier,
	onTimeTolerance time.Duration, skippedBreaksStreak bool, logger zerolog.Logger) *Ledger {
	return &Ledger{
		streaks:             streaks,
		meds:                meds,
		notify:              notify,
		logger:              logger.With().Str("component", "ledger").Logger(),
		onTimeTolerance:     onTimeTolerance,
		skippedBreaksStreak: skippedBreaksStreak,
	}
}

// OnTaken moves stock and extends the streak when the dose was on time. A
// late dose still counts as taken and moves stock, but does not extend the
// streak.
func (l *Ledger) OnTaken(ctx context.Context, medicationID, userID uuid.UUID, scheduledTime, resolvedAt time.Time) error {
	if err := l.decrementStock(ctx, medicationID, userID); err != nil {
		return err
	}

	if resolvedAt.Sub(scheduledTime) > l.onTimeTolerance {
		l.logger.Debug().
			Str("medication_id", medicationID.String()).
			Msg("late dose, streak unchanged")
		return nil
	}
	_, err := l.streaks.IncrementStreak(ctx, medicationID, userID)
	return err
}

// OnSkipped records a deliberate skip. No stock moves. Under the default
// policy a skip is an adherence event like a taken dose: on time it extends
// the streak, late it leaves the streak alone. With skippedBreaksStreak set
// any skip resets it instead.
func (l *Ledger) OnSkipped(ctx context.Context, medicationID, userID uuid.UUID, scheduledTime, resolvedAt time.Time) error {
	if l.skippedBreaksStreak {
		return l.streaks.ResetStreak(ctx, medicationID, userID)
	}
	if resolvedAt.Sub(scheduledTime) > l.onTimeTolerance {
		return nil
	}
	_, err := l.streaks.IncrementStreak(ctx, medicationID, userID)
	return err
}

// OnMissed resets the streak.
func (l *Ledger) OnMissed(ctx context.Context, medicationID, userID uuid.UUID) error {
	return l.streaks.ResetStreak(ctx, medicationID, userID)
}

// OnAdHocTaken moves stock for a dose logged outside any reminder. Streaks
// track scheduled outcomes only.
func (l *Ledger) OnAdHocTaken(ctx context.Context, medicationID, userID uuid.UUID) error {
	return l.decrementStock(ctx, medicationID, userID)
}

// decrementStock takes one unit off the medication. Running dry is recorded,
// not treated as an error: the dose was already taken in the real world and
// the books must reflect it.
func (l *Ledger) decrementStock(ctx context.Context, medicationID, userID uuid.UUID) error {
	remaining, depleted, err := l.meds.DecrementStock(ctx, medicationID)
	if err != nil {
		return err
	}
	if depleted {
		l.logger.Warn().
			Str("medication_id", medicationID.String()).
			Msg("dose taken with no stock on record")
		return nil
	}

	m, err := l.meds.GetByID(ctx, medicationID)
	if err != nil {
		return err
	}
	if remaining > m.LowStockThreshold {
		return nil
	}

	l.logger.Info().
		Str("medication_id", medicationID.String()).
		Int("remaining", remaining).
		Msg("stock at or below threshold")
	if l.notify != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			l.notify(ctx, userID, m.Name, remaining)
		}()
	}
	return nil
}
