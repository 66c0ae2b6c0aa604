package medication

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func validMedication() *Medication {
	return &Medication{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		Name:              "Amoxicillin",
		Dosage:            "500mg",
		Frequency:         TwiceDaily,
		Timezone:          "UTC",
		StartAt:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CurrentStock:      30,
		LowStockThreshold: 5,
		IsActive:          true,
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"08:00", 8, 0, false},
		{"20:30", 20, 30, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"08:60", 0, 0, true},
		{"nonsense", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got.Hour != tt.hour || got.Minute != tt.minute {
			t.Errorf("ParseTimeOfDay(%q) = %02d:%02d, want %02d:%02d",
				tt.in, got.Hour, got.Minute, tt.hour, tt.minute)
		}
	}
}

func TestDailyTimes_Defaults(t *testing.T) {
	tests := []struct {
		freq Frequency
		want []string
	}{
		{OnceDaily, []string{"08:00"}},
		{TwiceDaily, []string{"08:00", "20:00"}},
		{ThreeTimesDaily, []string{"08:00", "14:00", "20:00"}},
		{FourTimesDaily, []string{"06:00", "12:00", "18:00", "22:00"}},
	}

	for _, tt := range tests {
		m := validMedication()
		m.Frequency = tt.freq
		m.ReminderTimes = nil

		times, err := m.DailyTimes()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.freq, err)
		}
		if len(times) != len(tt.want) {
			t.Fatalf("%s: expected %d times, got %d", tt.freq, len(tt.want), len(times))
		}
		for i, w := range tt.want {
			if times[i].String() != w {
				t.Errorf("%s[%d]: expected %s, got %s", tt.freq, i, w, times[i])
			}
		}
	}
}

func TestDailyTimes_ExplicitOverridesDefaults(t *testing.T) {
	m := validMedication()
	m.ReminderTimes = []string{"09:15", "21:45"}

	times, err := m.DailyTimes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(times) != 2 || times[0].String() != "09:15" || times[1].String() != "21:45" {
		t.Errorf("expected explicit times, got %v", times)
	}
}

func TestDailyTimes_IntervalAndAsNeeded(t *testing.T) {
	m := validMedication()
	m.Frequency = EveryXHours

	times, err := m.DailyTimes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if times != nil {
		t.Errorf("expected nil times for interval frequency, got %v", times)
	}

	m.Frequency = AsNeeded
	times, _ = m.DailyTimes()
	if times != nil {
		t.Errorf("expected nil times for as-needed frequency, got %v", times)
	}
}

func TestSchedulable(t *testing.T) {
	m := validMedication()
	if !m.Schedulable() {
		t.Error("expected twice_daily to be schedulable")
	}
	m.Frequency = AsNeeded
	if m.Schedulable() {
		t.Error("expected as_needed not to be schedulable")
	}
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	m := validMedication()
	m.Timezone = "Not/AZone"
	if m.Location() != time.UTC {
		t.Error("expected UTC fallback for unknown timezone")
	}

	m.Timezone = ""
	if m.Location() != time.UTC {
		t.Error("expected UTC fallback for empty timezone")
	}

	m.Timezone = "Africa/Nairobi"
	if m.Location().String() != "Africa/Nairobi" {
		t.Errorf("expected Africa/Nairobi, got %s", m.Location())
	}
}

func TestValidate(t *testing.T) {
	if err := validMedication().Validate(); err != nil {
		t.Fatalf("unexpected error for valid medication: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Medication)
		field  string
	}{
		{"missing name", func(m *Medication) { m.Name = "" }, "name"},
		{"missing dosage", func(m *Medication) { m.Dosage = "" }, "dosage"},
		{"bad frequency", func(m *Medication) { m.Frequency = "hourly" }, "frequency_type"},
		{"interval without value", func(m *Medication) { m.Frequency = EveryXHours; m.FrequencyValue = nil }, "frequency_value"},
		{"interval value too large", func(m *Medication) {
			m.Frequency = EveryXHours
			v := 25
			m.FrequencyValue = &v
		}, "frequency_value"},
		{"custom without times", func(m *Medication) { m.Frequency = Custom; m.ReminderTimes = nil }, "reminder_times"},
		{"unparseable time", func(m *Medication) { m.ReminderTimes = []string{"25:00"} }, "reminder_times"},
		{"bad timezone", func(m *Medication) { m.Timezone = "Mars/Olympus" }, "timezone"},
		{"zero start", func(m *Medication) { m.StartAt = time.Time{} }, "start_datetime"},
		{"end before start", func(m *Medication) {
			end := m.StartAt.Add(-time.Hour)
			m.EndAt = &end
		}, "end_datetime"},
		{"negative stock", func(m *Medication) { m.CurrentStock = -1 }, "current_stock"},
		{"negative threshold", func(m *Medication) { m.LowStockThreshold = -1 }, "low_stock_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMedication()
			tt.mutate(m)

			err := m.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestValidate_IntervalFrequency(t *testing.T) {
	m := validMedication()
	m.Frequency = EveryXHours
	v := 6
	m.FrequencyValue = &v

	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
