package medlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dannyude/medication-reminder-api/internal/domain/medication"
)

// StockKeeper receives ad hoc taken doses so stock stays accurate for doses
// logged outside any reminder.
type StockKeeper interface {
	OnAdHocTaken(ctx context.Context, medicationID, userID uuid.UUID) error
}

// TxRunner executes fn inside a database transaction carried on the context.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	logs   Repository
	meds   medication.Repository
	stock  StockKeeper
	runTx  TxRunner
	logger zerolog.Logger
}

func NewService(logs Repository, meds medication.Repository, stock StockKeeper, runTx TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		logs:   logs,
		meds:   meds,
		stock:  stock,
		runTx:  runTx,
		logger: logger.With().Str("component", "medlog_service").Logger(),
	}
}

// CreateAdHoc records a dose taken or skipped outside any reminder, the only
// way as-needed medications are logged. A taken dose still moves stock;
// streaks are driven by reminder outcomes alone.
func (s *Service) CreateAdHoc(ctx context.Context, l *MedicationLog) error {
	if !l.Action.Valid() {
		return &medication.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", l.Action)}
	}

	m, err := s.meds.GetByID(ctx, l.MedicationID)
	if err != nil {
		return err
	}
	if m.UserID != l.UserID {
		return medication.ErrNotFound
	}

	l.ReminderID = nil
	if l.TakenAt.IsZero() {
		l.TakenAt = time.Now().UTC()
	}
	if l.DosageTaken == nil {
		l.DosageTaken = &m.Dosage
	}

	return s.runTx(ctx, func(ctx context.Context) error {
		if err := s.logs.Create(ctx, l); err != nil {
			return err
		}
		if l.Action == ActionTaken {
			return s.stock.OnAdHocTaken(ctx, l.MedicationID, l.UserID)
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*MedicationLog, error) {
	l, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, ErrNotFound
	}
	return l, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*MedicationLog, int, error) {
	return s.logs.ListByUser(ctx, userID, f, limit, offset)
}
