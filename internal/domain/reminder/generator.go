package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dannyude/medication-reminder-api/internal/domain/medication"
)

// Generator projects medication schedules into concrete pending reminder
// rows up to a rolling horizon. Re-running over the same window creates
// nothing new: instants already covered are skipped in memory, and the
// (medication_id, scheduled_time) unique index catches anything that slips
// through between the read and the insert.
type Generator struct {
	reminders Repository
	meds      medication.Repository
	logger    zerolog.Logger

	horizonDays int
}

func NewGenerator(reminders Repository, meds medication.Repository, horizonDays int, logger zerolog.Logger) *Generator {
	return &Generator{
		reminders:   reminders,
		meds:        meds,
		logger:      logger.With().Str("component", "generator").Logger(),
		horizonDays: horizonDays,
	}
}

// GenerateForMedication creates reminders for one medication from
// max(now, start) through now + horizon, capped at the medication's end.
// Returns the count of rows actually inserted.
func (g *Generator) GenerateForMedication(ctx context.Context, m *medication.Medication, now time.Time) (int, error) {
	if !m.IsActive || !m.Schedulable() {
		return 0, nil
	}

	now = now.UTC().Truncate(time.Second)
	if m.EndAt != nil && !m.EndAt.After(now) {
		return 0, nil
	}

	windowStart := now
	if m.StartAt.After(windowStart) {
		windowStart = m.StartAt.UTC().Truncate(time.Second)
	}
	windowEnd := now.AddDate(0, 0, g.horizonDays)
	if m.EndAt != nil && m.EndAt.Before(windowEnd) {
		windowEnd = m.EndAt.UTC().Truncate(time.Second)
	}

	existing, err := g.reminders.ExistingInstants(ctx, m.ID, windowStart, windowEnd.Add(time.Second))
	if err != nil {
		return 0, fmt.Errorf("load existing instants: %w", err)
	}

	instants, err := scheduleInstants(m, windowStart, windowEnd)
	if err != nil {
		return 0, err
	}

	var batch []*Reminder
	for _, at := range instants {
		if existing[at.Unix()] {
			continue
		}
		batch = append(batch, &Reminder{
			MedicationID:  m.ID,
			UserID:        m.UserID,
			ScheduledTime: at,
			Status:        StatusPending,
		})
	}
	if len(batch) == 0 {
		return 0, nil
	}

	created, err := g.reminders.CreateBatch(ctx, batch)
	if err != nil {
		return created, fmt.Errorf("insert reminders: %w", err)
	}

	g.logger.Info().
		Str("medication_id", m.ID.String()).
		Int("created", created).
		Time("window_start", windowStart).
		Time("window_end", windowEnd).
		Msg("reminders generated")
	return created, nil
}

// GenerateAll runs the nightly batch over every active medication. One bad
// medication never aborts the batch; its error is logged and the loop
// continues.
func (g *Generator) GenerateAll(ctx context.Context, now time.Time) (int, error) {
	meds, err := g.meds.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active medications: %w", err)
	}

	total := 0
	for _, m := range meds {
		count, err := g.GenerateForMedication(ctx, m, now)
		if err != nil {
			g.logger.Error().Err(err).
				Str("medication_id", m.ID.String()).
				Msg("generation failed for medication")
			continue
		}
		total += count
	}

	if total > 0 {
		g.logger.Info().Int("created", total).Int("medications", len(meds)).Msg("generation batch finished")
	}
	return total, nil
}

// scheduleInstants computes the schedule's absolute instants in [start, end],
// in UTC.
func scheduleInstants(m *medication.Medication, start, end time.Time) ([]time.Time, error) {
	if m.Frequency == medication.EveryXHours {
		return intervalInstants(m, start, end), nil
	}
	return dailyInstants(m, start, end)
}

// dailyInstants resolves each configured time-of-day against the
// medication's timezone for every calendar day in the window. time.Date
// normalizes instants that a DST shift skips or repeats: a skipped 02:30
// becomes 03:30, a repeated wall-clock hour resolves to the first offset, so
// each (day, time-of-day) yields exactly one instant.
func dailyInstants(m *medication.Medication, start, end time.Time) ([]time.Time, error) {
	times, err := m.DailyTimes()
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, nil
	}

	loc := m.Location()
	day := start.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	endLocal := end.In(loc)

	var instants []time.Time
	for !day.After(endLocal) {
		for _, tod := range times {
			at := time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, 0, 0, loc).UTC()
			if at.Before(start) || at.After(end) {
				continue
			}
			instants = append(instants, at)
		}
		day = day.AddDate(0, 0, 1)
	}
	return instants, nil
}

// intervalInstants steps from the medication's start instant in fixed
// frequency_value-hour strides, aligned so the phase is preserved across
// generation runs.
func intervalInstants(m *medication.Medication, start, end time.Time) []time.Time {
	if m.FrequencyValue == nil || *m.FrequencyValue <= 0 {
		return nil
	}
	interval := time.Duration(*m.FrequencyValue) * time.Hour

	current := m.StartAt.UTC().Truncate(time.Second)
	if current.Before(start) {
		steps := start.Sub(current) / interval
		current = current.Add(steps * interval)
		if current.Before(start) {
			current = current.Add(interval)
		}
	}

	var instants []time.Time
	for !current.After(end) {
		instants = append(instants, current)
		current = current.Add(interval)
	}
	return instants
}
