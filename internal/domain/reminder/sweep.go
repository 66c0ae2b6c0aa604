package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper is the reconciliation pass. Reminders that sat pending or sent past
// their staleness windows are moved to missed and the adherence ledger is
// told so streaks reset. Missed is reachable only from here, never from a
// user action.
type Sweeper struct {
	reminders Repository
	ledger    LedgerHook
	runTx     TxRunner
	logger    zerolog.Logger

	pendingStaleness time.Duration
	sentStaleness    time.Duration
	batchSize        int
}

func NewSweeper(reminders Repository, ledger LedgerHook, runTx TxRunner,
	pendingStaleness, sentStaleness time.Duration, batchSize int, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		reminders:        reminders,
		ledger:           ledger,
		runTx:            runTx,
		logger:           logger.With().Str("component", "sweeper").Logger(),
		pendingStaleness: pendingStaleness,
		sentStaleness:    sentStaleness,
		batchSize:        batchSize,
	}
}

// Tick finds stale reminders and resolves each as missed in its own
// transaction. A reminder resolved concurrently by the user loses its
// staleness and is skipped without noise.
func (s *Sweeper) Tick(ctx context.Context, now time.Time) error {
	stale, err := s.reminders.ListStale(ctx,
		now.Add(-s.pendingStaleness), now.Add(-s.sentStaleness), s.batchSize)
	if err != nil {
		return fmt.Errorf("list stale reminders: %w", err)
	}

	missed := 0
	for _, rem := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.sweep(ctx, rem, now); err != nil {
			var stale *StaleStateError
			if errors.As(err, &stale) {
				continue
			}
			s.logger.Error().Err(err).
				Str("reminder_id", rem.ID.String()).
				Msg("sweep failed for reminder")
			continue
		}
		missed++
	}

	if missed > 0 {
		s.logger.Info().Int("missed", missed).Int("stale", len(stale)).Msg("reconciliation sweep")
	}
	return nil
}

func (s *Sweeper) sweep(ctx context.Context, rem *Reminder, now time.Time) error {
	resolvedAt := now
	return s.runTx(ctx, func(ctx context.Context) error {
		if err := s.reminders.Transition(ctx, rem.ID, rem.Status, StatusMissed, TransitionUpdate{
			ResolvedAt: &resolvedAt,
		}); err != nil {
			return err
		}
		return s.ledger.OnMissed(ctx, rem.MedicationID, rem.UserID)
	})
}
