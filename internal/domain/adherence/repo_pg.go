package adherence

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

func (r *repoPG) IncrementStreak(ctx context.Context, medicationID, userID uuid.UUID) (int, error) {
	var current int
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO streaks (medication_id, user_id, current_streak, longest_streak)
		VALUES ($1, $2, 1, 1)
		ON CONFLICT (medication_id) DO UPDATE SET
			current_streak = streaks.current_streak + 1,
			longest_streak = GREATEST(streaks.longest_streak, streaks.current_streak + 1),
			updated_at = NOW()
		RETURNING current_streak`,
		medicationID, userID).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("increment streak: %w", err)
	}
	return current, nil
}

func (r *repoPG) ResetStreak(ctx context.Context, medicationID, userID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO streaks (medication_id, user_id, current_streak, longest_streak)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (medication_id) DO UPDATE SET
			current_streak = 0,
			longest_streak = GREATEST(streaks.longest_streak, streaks.current_streak),
			updated_at = NOW()`,
		medicationID, userID)
	if err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	return nil
}

func (r *repoPG) GetStreak(ctx context.Context, medicationID uuid.UUID) (*StreakRecord, error) {
	var s StreakRecord
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT medication_id, user_id, current_streak, longest_streak, updated_at
		FROM streaks WHERE medication_id = $1`, medicationID).
		Scan(&s.MedicationID, &s.UserID, &s.CurrentStreak, &s.LongestStreak, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) ListStreaks(ctx context.Context, userID uuid.UUID) ([]*StreakRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT medication_id, user_id, current_streak, longest_streak, updated_at
		FROM streaks WHERE user_id = $1
		ORDER BY current_streak DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*StreakRecord
	for rows.Next() {
		var s StreakRecord
		if err := rows.Scan(&s.MedicationID, &s.UserID, &s.CurrentStreak, &s.LongestStreak, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

// Stats counts directly off the reminders table. Missed reminders never get
// a dose log row, so outcome statuses are the one complete record.
func (r *repoPG) Stats(ctx context.Context, userID uuid.UUID, f StatsFilter) (*Stats, error) {
	where := `user_id = $1`
	args := []interface{}{userID}

	if f.MedicationID != nil {
		args = append(args, *f.MedicationID)
		where += fmt.Sprintf(` AND medication_id = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += fmt.Sprintf(` AND scheduled_time >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += fmt.Sprintf(` AND scheduled_time < $%d`, len(args))
	}

	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'taken'),
			COUNT(*) FILTER (WHERE status = 'skipped'),
			COUNT(*) FILTER (WHERE status = 'missed')
		FROM reminders WHERE `+where, args...).
		Scan(&s.TakenCount, &s.SkippedCount, &s.MissedCount)
	if err != nil {
		return nil, fmt.Errorf("adherence stats: %w", err)
	}
	s.Rate = ComputeRate(s.TakenCount, s.MissedCount)
	return &s, nil
}
