package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dannyude/medication-reminder-api/internal/domain/medication"
	"github.com/dannyude/medication-reminder-api/internal/domain/medlog"
)

// LedgerHook receives resolved outcomes so stock and adherence state stay in
// step with reminder transitions. Implementations run inside the same
// transaction as the transition.
type LedgerHook interface {
	OnTaken(ctx context.Context, medicationID, userID uuid.UUID, scheduledTime, resolvedAt time.Time) error
	OnSkipped(ctx context.Context, medicationID, userID uuid.UUID, scheduledTime, resolvedAt time.Time) error
	OnMissed(ctx context.Context, medicationID, userID uuid.UUID) error
}

// TxRunner executes fn inside a database transaction carried on the context.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service owns the user-facing reminder operations. Marking a reminder
// writes the transition, the dose log row and the ledger update atomically.
type Service struct {
	reminders Repository
	meds      medication.Repository
	logs      medlog.Repository
	ledger    LedgerHook
	generator *Generator
	runTx     TxRunner
	logger    zerolog.Logger
}

func NewService(reminders Repository, meds medication.Repository, logs medlog.Repository,
	ledger LedgerHook, generator *Generator, runTx TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		reminders: reminders,
		meds:      meds,
		logs:      logs,
		ledger:    ledger,
		generator: generator,
		runTx:     runTx,
		logger:    logger.With().Str("component", "reminder_service").Logger(),
	}
}

// MarkTaken resolves a sent reminder as taken. Only sent reminders can be
// resolved by the user: a pending one has not been delivered yet, a terminal
// one already has an outcome.
func (s *Service) MarkTaken(ctx context.Context, reminderID, userID uuid.UUID, notes, sideEffects *string) (*Reminder, error) {
	return s.resolve(ctx, reminderID, userID, StatusTaken, notes, sideEffects)
}

// MarkSkipped resolves a sent reminder as skipped.
func (s *Service) MarkSkipped(ctx context.Context, reminderID, userID uuid.UUID, notes, sideEffects *string) (*Reminder, error) {
	return s.resolve(ctx, reminderID, userID, StatusSkipped, notes, sideEffects)
}

func (s *Service) resolve(ctx context.Context, reminderID, userID uuid.UUID, to Status, notes, sideEffects *string) (*Reminder, error) {
	rem, err := s.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	if rem.UserID != userID {
		return nil, ErrNotFound
	}

	if rem.Status.IsTerminal() {
		return nil, &StaleStateError{ReminderID: rem.ID, Expected: StatusSent, Current: rem.Status}
	}
	if !CanTransition(rem.Status, to) || rem.Status != StatusSent {
		return nil, &InvalidTransitionError{ReminderID: rem.ID, From: rem.Status, To: to}
	}

	now := time.Now().UTC()
	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.reminders.Transition(ctx, rem.ID, StatusSent, to, TransitionUpdate{
			ResolvedAt:  &now,
			Notes:       notes,
			SideEffects: sideEffects,
		}); err != nil {
			return err
		}

		action := medlog.ActionTaken
		if to == StatusSkipped {
			action = medlog.ActionSkipped
		}
		if err := s.logs.Create(ctx, &medlog.MedicationLog{
			MedicationID: rem.MedicationID,
			UserID:       rem.UserID,
			ReminderID:   &rem.ID,
			Action:       action,
			TakenAt:      now,
			Notes:        notes,
			SideEffects:  sideEffects,
		}); err != nil {
			return fmt.Errorf("write dose log: %w", err)
		}

		if to == StatusTaken {
			return s.ledger.OnTaken(ctx, rem.MedicationID, rem.UserID, rem.ScheduledTime, now)
		}
		return s.ledger.OnSkipped(ctx, rem.MedicationID, rem.UserID, rem.ScheduledTime, now)
	})
	if err != nil {
		return nil, err
	}

	return s.reminders.GetByID(ctx, rem.ID)
}

// Get returns a single reminder, scoped to its owner.
func (s *Service) Get(ctx context.Context, reminderID, userID uuid.UUID) (*Reminder, error) {
	rem, err := s.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	if rem.UserID != userID {
		return nil, ErrNotFound
	}
	return rem, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Reminder, int, error) {
	return s.reminders.ListByUser(ctx, userID, f, limit, offset)
}

// Today lists the user's reminders scheduled within the current UTC day.
func (s *Service) Today(ctx context.Context, userID uuid.UUID, now time.Time) ([]*Reminder, error) {
	from := now.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)
	items, _, err := s.reminders.ListByUser(ctx, userID, ListFilter{From: &from, To: &to}, 200, 0)
	return items, err
}

// Upcoming lists the user's next pending reminders from now on.
func (s *Service) Upcoming(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*Reminder, error) {
	from := now.UTC()
	status := StatusPending
	items, _, err := s.reminders.ListByUser(ctx, userID, ListFilter{Status: &status, From: &from}, limit, 0)
	return items, err
}

// Regenerate runs the reminder generator for one medication on demand,
// scoped to its owner.
func (s *Service) Regenerate(ctx context.Context, medicationID, userID uuid.UUID) (int, error) {
	m, err := s.meds.GetByID(ctx, medicationID)
	if err != nil {
		return 0, err
	}
	if m.UserID != userID {
		return 0, medication.ErrNotFound
	}
	return s.generator.GenerateForMedication(ctx, m, time.Now().UTC())
}
