package medication

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	items map[uuid.UUID]*Medication
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Medication)}
}

func (m *mockRepo) Create(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	med.CreatedAt = time.Now().UTC()
	med.UpdatedAt = med.CreatedAt
	cp := *med
	m.items[med.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *med
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, med *Medication) error {
	if _, ok := m.items[med.ID]; !ok {
		return ErrNotFound
	}
	cp := *med
	cp.UpdatedAt = time.Now().UTC()
	m.items[med.ID] = &cp
	return nil
}

func (m *mockRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	med, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	med.IsActive = false
	return nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID uuid.UUID, activeOnly bool, limit, offset int) ([]*Medication, int, error) {
	var items []*Medication
	for _, med := range m.items {
		if med.UserID != userID {
			continue
		}
		if activeOnly && !med.IsActive {
			continue
		}
		cp := *med
		items = append(items, &cp)
	}
	return items, len(items), nil
}

func (m *mockRepo) ListActive(_ context.Context) ([]*Medication, error) {
	var items []*Medication
	for _, med := range m.items {
		if med.IsActive {
			cp := *med
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) DecrementStock(_ context.Context, id uuid.UUID) (int, bool, error) {
	med, ok := m.items[id]
	if !ok {
		return 0, false, ErrNotFound
	}
	if med.CurrentStock == 0 {
		return 0, true, nil
	}
	med.CurrentStock--
	return med.CurrentStock, false, nil
}

type mockPlanner struct {
	calls []uuid.UUID
}

func (p *mockPlanner) GenerateForMedication(_ context.Context, m *Medication, _ time.Time) (int, error) {
	p.calls = append(p.calls, m.ID)
	return 4, nil
}

func testService(repo *mockRepo, planner ReminderPlanner) *Service {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewService(repo, planner, 5, logger)
}

func TestService_Create(t *testing.T) {
	repo := newMockRepo()
	planner := &mockPlanner{}
	svc := testService(repo, planner)

	m := validMedication()
	m.ID = uuid.Nil
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if !m.IsActive {
		t.Error("expected new medication to be active")
	}
	if len(planner.calls) != 1 {
		t.Errorf("expected on-demand generation after create, got %d calls", len(planner.calls))
	}
}

func TestService_Create_DefaultsApplied(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo, &mockPlanner{})

	m := validMedication()
	m.ID = uuid.Nil
	m.Timezone = ""
	m.LowStockThreshold = 0
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Timezone != "UTC" {
		t.Errorf("expected UTC default timezone, got %s", m.Timezone)
	}
	if m.LowStockThreshold != 5 {
		t.Errorf("expected default low-stock threshold 5, got %d", m.LowStockThreshold)
	}
}

func TestService_Create_ValidationRejected(t *testing.T) {
	repo := newMockRepo()
	planner := &mockPlanner{}
	svc := testService(repo, planner)

	m := validMedication()
	m.Name = ""
	err := svc.Create(context.Background(), m)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(repo.items) != 0 {
		t.Error("expected no medication persisted on validation failure")
	}
	if len(planner.calls) != 0 {
		t.Error("expected no generation on validation failure")
	}
}

func TestService_Create_AsNeededSkipsGeneration(t *testing.T) {
	repo := newMockRepo()
	planner := &mockPlanner{}
	svc := testService(repo, planner)

	m := validMedication()
	m.Frequency = AsNeeded
	m.ReminderTimes = nil
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(planner.calls) != 0 {
		t.Error("expected no generation for as-needed medication")
	}
}

func TestService_Get_WrongUser(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo, &mockPlanner{})

	m := validMedication()
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Get(context.Background(), m.ID, uuid.New())
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for wrong user, got %v", err)
	}
}

func TestService_Update_RegeneratesReminders(t *testing.T) {
	repo := newMockRepo()
	planner := &mockPlanner{}
	svc := testService(repo, planner)

	m := validMedication()
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.ReminderTimes = []string{"07:00", "19:00"}
	if err := svc.Update(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(planner.calls) != 2 {
		t.Errorf("expected generation after create and update, got %d calls", len(planner.calls))
	}
}

func TestService_Delete_SoftDeletes(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo, &mockPlanner{})

	m := validMedication()
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), m.ID, m.UserID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.items[m.ID]
	if stored.IsActive {
		t.Error("expected medication to be inactive after delete")
	}

	active, _ := repo.ListActive(context.Background())
	if len(active) != 0 {
		t.Error("expected soft-deleted medication excluded from active list")
	}
}
