package medication

import (
	"context"
	"errors"

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

const medCols = `id, user_id, name, dosage, instructions,
	frequency_type, frequency_value, reminder_times, timezone,
	start_datetime, end_datetime, current_stock, low_stock_threshold,
	is_active, created_at, updated_at`

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Dosage, &m.Instructions,
		&m.Frequency, &m.FrequencyValue, &m.ReminderTimes, &m.Timezone,
		&m.StartAt, &m.EndAt, &m.CurrentStock, &m.LowStockThreshold,
		&m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medications (id, user_id, name, dosage, instructions,
			frequency_type, frequency_value, reminder_times, timezone,
			start_datetime, end_datetime, current_stock, low_stock_threshold, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		m.ID, m.UserID, m.Name, m.Dosage, m.Instructions,
		m.Frequency, m.FrequencyValue, m.ReminderTimes, m.Timezone,
		m.StartAt, m.EndAt, m.CurrentStock, m.LowStockThreshold, m.IsActive)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return scanMedication(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medCols+` FROM medications WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *Medication) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medications SET name=$2, dosage=$3, instructions=$4,
			frequency_type=$5, frequency_value=$6, reminder_times=$7, timezone=$8,
			start_datetime=$9, end_datetime=$10, current_stock=$11,
			low_stock_threshold=$12, is_active=$13, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.Dosage, m.Instructions,
		m.Frequency, m.FrequencyValue, m.ReminderTimes, m.Timezone,
		m.StartAt, m.EndAt, m.CurrentStock,
		m.LowStockThreshold, m.IsActive)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medications SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool, limit, offset int) ([]*Medication, int, error) {
	filter := ``
	if activeOnly {
		filter = ` AND is_active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medications WHERE user_id = $1`+filter, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medCols+` FROM medications WHERE user_id = $1`+filter+
			` ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Medication, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medCols+` FROM medications WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// DecrementStock takes one dose off in a single statement so concurrent
// terminal transitions for the same medication never read-modify-write.
func (r *repoPG) DecrementStock(ctx context.Context, id uuid.UUID) (int, bool, error) {
	var remaining int
	var depleted bool
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medications m
		SET current_stock = GREATEST(m.current_stock - 1, 0), updated_at = NOW()
		FROM (SELECT id, current_stock AS prev FROM medications WHERE id = $1 FOR UPDATE) old
		WHERE m.id = old.id
		RETURNING m.current_stock, old.prev = 0`, id).Scan(&remaining, &depleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	return remaining, depleted, err
}
