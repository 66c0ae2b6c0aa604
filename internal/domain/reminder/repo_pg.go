package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const reminderCols = `id, medication_id, user_id, scheduled_time, status,
	sent_channel, sent_at, resolved_at, notes, side_effects, created_at`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	err := row.Scan(&rem.ID, &rem.MedicationID, &rem.UserID, &rem.ScheduledTime, &rem.Status,
		&rem.SentChannel, &rem.SentAt, &rem.ResolvedAt, &rem.Notes, &rem.SideEffects, &rem.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &rem, err
}

func (r *repoPG) CreateBatch(ctx context.Context, reminders []*Reminder) (int, error) {
	created := 0
	for _, rem := range reminders {
		if rem.ID == uuid.Nil {
			rem.ID = uuid.New()
		}
		tag, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO reminders (id, medication_id, user_id, scheduled_time, status)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (medication_id, scheduled_time) DO NOTHING`,
			rem.ID, rem.MedicationID, rem.UserID, rem.ScheduledTime, StatusPending)
		if err != nil {
			return created, fmt.Errorf("insert reminder: %w", err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	return scanReminder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE id = $1`, id))
}

func (r *repoPG) ExistingInstants(ctx context.Context, medicationID uuid.UUID, from, to time.Time) (map[int64]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT scheduled_time FROM reminders
		WHERE medication_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3`,
		medicationID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	instants := make(map[int64]bool)
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		instants[t.Unix()] = true
	}
	return instants, rows.Err()
}

// ClaimDue selects and stamps the batch in one statement, so the claim
// survives the implicit transaction: other instances skip rows that are
// either row-locked right now or leased within the window.
func (r *repoPG) ClaimDue(ctx context.Context, now, retryFloor time.Time, lease time.Duration, limit int) ([]*DispatchItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		WITH due AS (
			SELECT id FROM reminders
			WHERE status = $1 AND scheduled_time <= $2 AND scheduled_time > $3
			  AND (claimed_at IS NULL OR claimed_at <= $4)
			ORDER BY scheduled_time
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		UPDATE reminders r SET claimed_at = $2
		FROM due, medications m, users u
		WHERE r.id = due.id AND m.id = r.medication_id AND u.id = r.user_id
		RETURNING r.id, r.medication_id, r.user_id, r.scheduled_time, r.status,
			r.sent_channel, r.sent_at, r.resolved_at, r.notes, r.side_effects, r.created_at,
			m.name, m.dosage, COALESCE(u.push_key, ''), COALESCE(u.mobile_number, '')`,
		StatusPending, now, retryFloor, now.Add(-lease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*DispatchItem
	for rows.Next() {
		var it DispatchItem
		if err := rows.Scan(&it.ID, &it.MedicationID, &it.UserID, &it.ScheduledTime, &it.Status,
			&it.SentChannel, &it.SentAt, &it.ResolvedAt, &it.Notes, &it.SideEffects, &it.CreatedAt,
			&it.MedicationName, &it.Dosage, &it.Contact.PushKey, &it.Contact.Phone); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) ListStale(ctx context.Context, pendingBefore, sentBefore time.Time, limit int) ([]*Reminder, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reminderCols+` FROM reminders
		WHERE (status = $1 AND scheduled_time < $2)
		   OR (status = $3 AND scheduled_time < $4)
		ORDER BY scheduled_time
		LIMIT $5`,
		StatusPending, pendingBefore, StatusSent, sentBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rem)
	}
	return items, rows.Err()
}

// Transition is the conditional update every state change goes through. The
// WHERE clause carries the expected status, so a concurrent writer's change
// makes this a zero-row update rather than an overwrite.
func (r *repoPG) Transition(ctx context.Context, id uuid.UUID, from, to Status, upd TransitionUpdate) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE reminders SET status = $3,
			sent_channel = COALESCE($4, sent_channel),
			sent_at      = COALESCE($5, sent_at),
			resolved_at  = COALESCE($6, resolved_at),
			notes        = COALESCE($7, notes),
			side_effects = COALESCE($8, side_effects)
		WHERE id = $1 AND status = $2`,
		id, from, to, upd.SentChannel, upd.SentAt, upd.ResolvedAt, upd.Notes, upd.SideEffects)
	if err != nil {
		return fmt.Errorf("transition reminder: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return &StaleStateError{ReminderID: id, Expected: from, Current: current.Status}
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Reminder, int, error) {
	where := `user_id = $1`
	args := []interface{}{userID}

	if f.Status != nil {
		args = append(args, *f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += fmt.Sprintf(` AND scheduled_time >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += fmt.Sprintf(` AND scheduled_time < $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM reminders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE `+where+
			fmt.Sprintf(` ORDER BY scheduled_time LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rem)
	}
	return items, total, rows.Err()
}
