package scheduling

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestRunner_AddCron_InvalidSpec(t *testing.T) {
	r := NewRunner(testLogger())
	err := r.AddCron("not a cron spec", "bad-job", func(ctx context.Context) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestRunner_AddCron_ValidSpec(t *testing.T) {
	r := NewRunner(testLogger())
	err := r.AddCron("15 2 * * *", "nightly-job", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunner_RunJob_RecoversPanic(t *testing.T) {
	r := NewRunner(testLogger())

	// Must not propagate the panic
	r.runJob("panicky", func(ctx context.Context) error {
		panic("boom")
	})
}

func TestRunner_RunJob_PassesContext(t *testing.T) {
	r := NewRunner(testLogger())

	var gotCtx context.Context
	r.runJob("ctx-job", func(ctx context.Context) error {
		gotCtx = ctx
		return nil
	})

	if gotCtx == nil {
		t.Fatal("expected job to receive a context")
	}
	if gotCtx.Err() != nil {
		t.Errorf("expected live context, got %v", gotCtx.Err())
	}
}

func TestRunner_RunJob_SkipsAfterStop(t *testing.T) {
	r := NewRunner(testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	var ran atomic.Bool
	r.runJob("late-job", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	if ran.Load() {
		t.Error("expected job to be skipped after Stop")
	}
}

func TestRunner_RunJob_LogsError(t *testing.T) {
	r := NewRunner(testLogger())

	// An erroring job must not panic or abort the runner
	r.runJob("failing", func(ctx context.Context) error {
		return errors.New("job error")
	})
}

func TestRunner_StartStop(t *testing.T) {
	r := NewRunner(testLogger())
	r.AddEvery(time.Hour, "hourly-job", func(ctx context.Context) error {
		return nil
	})

	r.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("unexpected error stopping runner: %v", err)
	}
}
