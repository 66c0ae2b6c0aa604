package medlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dannyude/medication-reminder-api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const logCols = `id, medication_id, user_id, reminder_id, action, taken_at,
	dosage_taken, notes, side_effects, created_at`

func scanLog(row pgx.Row) (*MedicationLog, error) {
	var l MedicationLog
	err := row.Scan(&l.ID, &l.MedicationID, &l.UserID, &l.ReminderID, &l.Action, &l.TakenAt,
		&l.DosageTaken, &l.Notes, &l.SideEffects, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &l, err
}

func (r *repoPG) Create(ctx context.Context, l *MedicationLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medication_logs (id, medication_id, user_id, reminder_id, action, taken_at, dosage_taken, notes, side_effects)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.MedicationID, l.UserID, l.ReminderID, l.Action, l.TakenAt, l.DosageTaken, l.Notes, l.SideEffects)
	if err != nil {
		return fmt.Errorf("insert medication log: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicationLog, error) {
	return scanLog(r.conn(ctx).QueryRow(ctx,
		`SELECT `+logCols+` FROM medication_logs WHERE id = $1`, id))
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*MedicationLog, int, error) {
	where := `user_id = $1`
	args := []interface{}{userID}

	if f.MedicationID != nil {
		args = append(args, *f.MedicationID)
		where += fmt.Sprintf(` AND medication_id = $%d`, len(args))
	}
	if f.Action != nil {
		args = append(args, *f.Action)
		where += fmt.Sprintf(` AND action = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += fmt.Sprintf(` AND taken_at >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += fmt.Sprintf(` AND taken_at < $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medication_logs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+logCols+` FROM medication_logs WHERE `+where+
			fmt.Sprintf(` ORDER BY taken_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*MedicationLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}
