package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dannyude/medication-reminder-api/internal/platform/notify"
)

// Deliverer is the slice of the notification gateway the dispatcher needs.
type Deliverer interface {
	Deliver(ctx context.Context, msg notify.Message) (channel string, err error)
}

// Dispatcher drains due pending reminders on every tick, delivers a
// notification for each and advances it to sent. Reminders older than the
// retry horizon are left to the reconciliation sweep instead of being
// delivered late.
type Dispatcher struct {
	reminders Repository
	gateway   Deliverer
	logger    zerolog.Logger

	batchSize    int
	retryHorizon time.Duration
	claimLease   time.Duration
}

func NewDispatcher(reminders Repository, gateway Deliverer, batchSize int, retryHorizon, claimLease time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		reminders:    reminders,
		gateway:      gateway,
		logger:       logger.With().Str("component", "dispatcher").Logger(),
		batchSize:    batchSize,
		retryHorizon: retryHorizon,
		claimLease:   claimLease,
	}
}

// Tick claims one batch of due reminders and dispatches each in turn. A
// failed delivery leaves the reminder pending; once its claim lease expires a
// later tick retries it, until it ages past the retry horizon.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) error {
	items, err := d.reminders.ClaimDue(ctx, now, now.Add(-d.retryHorizon), d.claimLease, d.batchSize)
	if err != nil {
		return fmt.Errorf("claim due reminders: %w", err)
	}

	sent := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := d.dispatch(ctx, item, now); err != nil {
			d.logger.Warn().Err(err).
				Str("reminder_id", item.ID.String()).
				Time("scheduled_time", item.ScheduledTime).
				Msg("dispatch failed, reminder stays pending")
			continue
		}
		sent++
	}

	if len(items) > 0 {
		d.logger.Info().Int("claimed", len(items)).Int("sent", sent).Msg("dispatch tick")
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, item *DispatchItem, now time.Time) error {
	msg := notify.Message{
		Recipient: notify.Recipient{
			PushKey: item.Contact.PushKey,
			Phone:   item.Contact.Phone,
		},
		Title: "Medication Reminder",
		Body:  fmt.Sprintf("Time to take %s (%s)", item.MedicationName, item.Dosage),
	}

	channel, err := d.gateway.Deliver(ctx, msg)
	if err != nil {
		return err
	}

	sentAt := now
	if err := d.reminders.Transition(ctx, item.ID, StatusPending, StatusSent, TransitionUpdate{
		SentChannel: &channel,
		SentAt:      &sentAt,
	}); err != nil {
		var stale *StaleStateError
		if errors.As(err, &stale) {
			// The notification went out, but another writer resolved the
			// reminder between claim and update. The resolved state wins;
			// nothing is pending anymore.
			d.logger.Info().
				Str("reminder_id", item.ID.String()).
				Str("status", string(stale.Current)).
				Msg("delivered but reminder was already resolved")
			return nil
		}
		return fmt.Errorf("record sent: %w", err)
	}

	d.logger.Debug().
		Str("reminder_id", item.ID.String()).
		Str("channel", channel).
		Msg("reminder dispatched")
	return nil
}
