// Package scheduling runs the engine's background jobs on cron schedules and
// fixed intervals.
package scheduling

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner owns the cron scheduler and the base context handed to jobs.
type Runner struct {
	cron   *cron.Cron
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner constructs a stopped Runner. Jobs registered before Start do not
// fire until Start is called.
func NewRunner(logger zerolog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron:   cron.New(),
		logger: logger.With().Str("component", "scheduler").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddCron registers fn under a standard 5-field cron spec.
func (r *Runner) AddCron(spec, name string, fn func(context.Context) error) error {
	_, err := r.cron.AddFunc(spec, func() {
		r.runJob(name, fn)
	})
	if err != nil {
		return fmt.Errorf("add cron job %s (%q): %w", name, spec, err)
	}
	return nil
}

// AddEvery registers fn to run at a fixed interval. Intervals are rounded to
// whole seconds by the scheduler.
func (r *Runner) AddEvery(interval time.Duration, name string, fn func(context.Context) error) {
	r.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		r.runJob(name, fn)
	}))
}

// runJob invokes fn with the runner's base context, recovering panics so one
// bad run never takes the scheduler down.
func (r *Runner) runJob(name string, fn func(context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			r.logger.Error().
				Str("job", name).
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("stack", string(stack[:n])).
				Msg("job panicked")
		}
	}()

	if r.ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := fn(r.ctx); err != nil {
		r.logger.Error().
			Err(err).
			Str("job", name).
			Dur("elapsed", time.Since(start)).
			Msg("job failed")
		return
	}

	r.logger.Debug().
		Str("job", name).
		Dur("elapsed", time.Since(start)).
		Msg("job finished")
}

// Start begins firing registered jobs.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info().Int("jobs", len(r.cron.Entries())).Msg("scheduler started")
}

// Stop cancels the job context and waits for in-flight jobs to finish, up to
// the deadline on ctx.
func (r *Runner) Stop(ctx context.Context) error {
	r.cancel()
	stopped := r.cron.Stop()

	select {
	case <-stopped.Done():
		r.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}
