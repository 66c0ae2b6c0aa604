package medication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReminderPlanner projects a medication's schedule into reminder rows. It is
// implemented by the reminder generator and invoked after create and schedule
// edits so a new medication never waits for the nightly batch.
type ReminderPlanner interface {
	GenerateForMedication(ctx context.Context, m *Medication, now time.Time) (int, error)
}

type Service struct {
	meds    Repository
	planner ReminderPlanner
	logger  zerolog.Logger

	lowStockDefault int
}

func NewService(meds Repository, planner ReminderPlanner, lowStockDefault int, logger zerolog.Logger) *Service {
	return &Service{
		meds:            meds,
		planner:         planner,
		logger:          logger.With().Str("component", "medication").Logger(),
		lowStockDefault: lowStockDefault,
	}
}

func (s *Service) Create(ctx context.Context, m *Medication) error {
	if m.UserID == uuid.Nil {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	if m.Timezone == "" {
		m.Timezone = "UTC"
	}
	if m.LowStockThreshold == 0 {
		m.LowStockThreshold = s.lowStockDefault
	}
	m.IsActive = true

	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.meds.Create(ctx, m); err != nil {
		return fmt.Errorf("create medication: %w", err)
	}

	s.planAhead(ctx, m)
	return nil
}

func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Medication, error) {
	m, err := s.meds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, ErrNotFound
	}
	return m, nil
}

// Update replaces the medication's editable fields and regenerates upcoming
// reminders when the schedule may have changed.
func (s *Service) Update(ctx context.Context, m *Medication) error {
	existing, err := s.Get(ctx, m.ID, m.UserID)
	if err != nil {
		return err
	}

	if err := m.Validate(); err != nil {
		return err
	}
	m.IsActive = existing.IsActive
	if err := s.meds.Update(ctx, m); err != nil {
		return fmt.Errorf("update medication: %w", err)
	}

	s.planAhead(ctx, m)
	return nil
}

// Delete soft-deletes: the generator stops producing reminders, existing
// reminders stay.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	return s.meds.SoftDelete(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool, limit, offset int) ([]*Medication, int, error) {
	return s.meds.ListByUser(ctx, userID, activeOnly, limit, offset)
}

// planAhead runs on-demand generation. A failure here is logged, not
// returned: the medication write already succeeded and the nightly batch
// covers the gap.
func (s *Service) planAhead(ctx context.Context, m *Medication) {
	if s.planner == nil || !m.Schedulable() || !m.IsActive {
		return
	}
	count, err := s.planner.GenerateForMedication(ctx, m, time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).
			Str("medication_id", m.ID.String()).
			Msg("on-demand reminder generation failed")
		return
	}
	s.logger.Info().
		Str("medication_id", m.ID.String()).
		Int("created", count).
		Msg("reminders generated")
}
