package reminder

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dannyude/medication-reminder-api/internal/domain/medlog"
	"github.com/dannyude/medication-reminder-api/internal/domain/user"
	"github.com/dannyude/medication-reminder-api/internal/platform/notify"
)

// mockRepo is a map-backed Repository with the same transition and claim
// semantics as the database implementation.
type mockRepo struct {
	items   map[uuid.UUID]*Reminder
	claims  map[uuid.UUID]time.Time
	contact user.Contact

	transitionErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items:   make(map[uuid.UUID]*Reminder),
		claims:  make(map[uuid.UUID]time.Time),
		contact: user.Contact{PushKey: "push-key", Phone: "+15550001111"},
	}
}

func (m *mockRepo) CreateBatch(_ context.Context, reminders []*Reminder) (int, error) {
	created := 0
	for _, rem := range reminders {
		dup := false
		for _, existing := range m.items {
			if existing.MedicationID == rem.MedicationID && existing.ScheduledTime.Equal(rem.ScheduledTime) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		cp := *rem
		cp.ID = uuid.New()
		cp.Status = StatusPending
		cp.CreatedAt = time.Now().UTC()
		m.items[cp.ID] = &cp
		created++
	}
	return created, nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Reminder, error) {
	rem, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rem
	return &cp, nil
}

func (m *mockRepo) ExistingInstants(_ context.Context, medicationID uuid.UUID, from, to time.Time) (map[int64]bool, error) {
	instants := make(map[int64]bool)
	for _, rem := range m.items {
		if rem.MedicationID != medicationID {
			continue
		}
		if rem.ScheduledTime.Before(from) || !rem.ScheduledTime.Before(to) {
			continue
		}
		instants[rem.ScheduledTime.Unix()] = true
	}
	return instants, nil
}

func (m *mockRepo) ClaimDue(_ context.Context, now, retryFloor time.Time, lease time.Duration, limit int) ([]*DispatchItem, error) {
	var items []*DispatchItem
	for _, rem := range m.items {
		if rem.Status != StatusPending {
			continue
		}
		if rem.ScheduledTime.After(now) || !rem.ScheduledTime.After(retryFloor) {
			continue
		}
		if claimed, ok := m.claims[rem.ID]; ok && claimed.After(now.Add(-lease)) {
			continue
		}
		cp := *rem
		items = append(items, &DispatchItem{
			Reminder:       cp,
			MedicationName: "Amoxicillin",
			Dosage:         "500mg",
			Contact:        m.contact,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledTime.Before(items[j].ScheduledTime) })
	if len(items) > limit {
		items = items[:limit]
	}
	for _, it := range items {
		m.claims[it.ID] = now
	}
	return items, nil
}

func (m *mockRepo) ListStale(_ context.Context, pendingBefore, sentBefore time.Time, limit int) ([]*Reminder, error) {
	var items []*Reminder
	for _, rem := range m.items {
		stale := (rem.Status == StatusPending && rem.ScheduledTime.Before(pendingBefore)) ||
			(rem.Status == StatusSent && rem.ScheduledTime.Before(sentBefore))
		if !stale {
			continue
		}
		cp := *rem
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledTime.Before(items[j].ScheduledTime) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *mockRepo) Transition(_ context.Context, id uuid.UUID, from, to Status, upd TransitionUpdate) error {
	if m.transitionErr != nil {
		return m.transitionErr
	}
	rem, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if rem.Status != from {
		return &StaleStateError{ReminderID: id, Expected: from, Current: rem.Status}
	}
	rem.Status = to
	if upd.SentChannel != nil {
		rem.SentChannel = upd.SentChannel
	}
	if upd.SentAt != nil {
		rem.SentAt = upd.SentAt
	}
	if upd.ResolvedAt != nil {
		rem.ResolvedAt = upd.ResolvedAt
	}
	if upd.Notes != nil {
		rem.Notes = upd.Notes
	}
	if upd.SideEffects != nil {
		rem.SideEffects = upd.SideEffects
	}
	return nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Reminder, int, error) {
	var items []*Reminder
	for _, rem := range m.items {
		if rem.UserID != userID {
			continue
		}
		if f.Status != nil && rem.Status != *f.Status {
			continue
		}
		if f.From != nil && rem.ScheduledTime.Before(*f.From) {
			continue
		}
		if f.To != nil && !rem.ScheduledTime.Before(*f.To) {
			continue
		}
		cp := *rem
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledTime.Before(items[j].ScheduledTime) })
	total := len(items)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, total, nil
}

type ledgerCall struct {
	medicationID uuid.UUID
	userID       uuid.UUID
}

type mockLedger struct {
	taken   []ledgerCall
	skipped []ledgerCall
	missed  []ledgerCall
}

func (l *mockLedger) OnTaken(_ context.Context, medicationID, userID uuid.UUID, _, _ time.Time) error {
	l.taken = append(l.taken, ledgerCall{medicationID, userID})
	return nil
}

func (l *mockLedger) OnSkipped(_ context.Context, medicationID, userID uuid.UUID, _, _ time.Time) error {
	l.skipped = append(l.skipped, ledgerCall{medicationID, userID})
	return nil
}

func (l *mockLedger) OnMissed(_ context.Context, medicationID, userID uuid.UUID) error {
	l.missed = append(l.missed, ledgerCall{medicationID, userID})
	return nil
}

type mockLogRepo struct {
	logs []*medlog.MedicationLog
}

func (r *mockLogRepo) Create(_ context.Context, l *medlog.MedicationLog) error {
	cp := *l
	cp.ID = uuid.New()
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *mockLogRepo) GetByID(_ context.Context, id uuid.UUID) (*medlog.MedicationLog, error) {
	for _, l := range r.logs {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, medlog.ErrNotFound
}

func (r *mockLogRepo) ListByUser(_ context.Context, userID uuid.UUID, _ medlog.ListFilter, _, _ int) ([]*medlog.MedicationLog, int, error) {
	var items []*medlog.MedicationLog
	for _, l := range r.logs {
		if l.UserID == userID {
			cp := *l
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

type mockDeliverer struct {
	channel string
	err     error
	calls   []notify.Message
}

func (d *mockDeliverer) Deliver(_ context.Context, msg notify.Message) (string, error) {
	d.calls = append(d.calls, msg)
	if d.err != nil {
		return "", d.err
	}
	return d.channel, nil
}

func passTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
