package generator

import (
	"reflect"
	"testing"
	"time"

	"github.com/energynexus/nexus-cli/internal/scenario"
)

func newOfficeGenerator(t *testing.T, seed int64) *Generator {
	t.Helper()
	registry, err := scenario.DefaultRegistry()
	if err != nil {
		t.Fatalf("failed to load profiles: %v", err)
	}
	office, err := registry.Get("office")
	if err != nil {
		t.Fatalf("failed to get office: %v", err)
	}
	engine, err := scenario.NewEngine(office)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return NewGenerator(engine, Config{Seed: seed})
}

func TestGenerator_Deterministic(t *testing.T) {
	a := newOfficeGenerator(t, 42).GenerateN(48)
	b := newOfficeGenerator(t, 42).GenerateN(48)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed should produce the same readings")
	}

	c := newOfficeGenerator(t, 7).GenerateN(48)
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds should produce different readings")
	}
}

func TestGenerator_FollowsSchedule(t *testing.T) {
	// One week of hourly readings starting Monday 2026-01-05 00:00
	readings := newOfficeGenerator(t, 1).GenerateN(7 * 24)

	for i, r := range readings {
		if i > 0 && r.Timestamp.Sub(readings[i-1].Timestamp) != time.Hour {
			t.Fatalf("reading %d: expected hourly spacing", i)
		}
		if r.DayOfWeek != r.Timestamp.Weekday().String() {
			t.Errorf("reading %d: day %s does not match timestamp %v", i, r.DayOfWeek, r.Timestamp)
		}
		if r.EnergyConsumption <= 0 {
			t.Errorf("reading %d: consumption should be positive, got %v", i, r.EnergyConsumption)
		}
		if r.SquareFootage != 1500 {
			t.Errorf("reading %d: unexpected area %v", i, r.SquareFootage)
		}

		hour := r.Timestamp.Hour()
		weekday := r.Timestamp.Weekday()
		switch {
		case weekday >= time.Monday && weekday <= time.Friday && hour >= 8 && hour < 18:
			if !r.HVACOn {
				t.Errorf("reading %d (%s %02d:00): HVAC should be on in working hours", i, r.DayOfWeek, hour)
			}
		case weekday == time.Saturday || weekday == time.Sunday:
			if r.LightingOn {
				t.Errorf("reading %d (%s): lighting is scheduled off on weekends", i, r.DayOfWeek)
			}
		}
		if (hour < 6 || hour >= 18) && r.RenewableEnergy != 0 {
			t.Errorf("reading %d: no renewable output expected at %02d:00, got %v", i, hour, r.RenewableEnergy)
		}
		if r.Occupancy == 0 && r.LightingOn && (weekday == time.Saturday || weekday == time.Sunday) {
			t.Errorf("reading %d: empty zone should not be lit", i)
		}
	}
}

func TestGenerator_Holiday(t *testing.T) {
	registry, err := scenario.DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	office, _ := registry.Get("office")
	profile := *office
	profile.Start = "2026-01-19 10:00"
	engine, err := scenario.NewEngine(&profile)
	if err != nil {
		t.Fatal(err)
	}

	r := NewGenerator(engine, Config{Seed: 3}).Next()
	if !r.Holiday {
		t.Error("2026-01-19 is listed as a holiday")
	}
}

func TestApplyCorrelations(t *testing.T) {
	ctx := NewCorrelationContext()
	ctx.Set(scenario.SignalOccupancy, 0)
	ctx.Set(scenario.SignalLighting, true)
	ctx.Set(scenario.SignalHVAC, false)
	ctx.Set(scenario.SignalTemperature, 27.0)
	ctx.Set(scenario.SignalEnergy, 50.0)
	ctx.ApplyCorrelations(map[string]bool{})

	if lit, _ := ctx.Get(scenario.SignalLighting); lit != false {
		t.Error("lighting should switch off in an empty zone")
	}
	if hvac, _ := ctx.Get(scenario.SignalHVAC); hvac != true {
		t.Error("HVAC should switch on 5 degrees from comfort")
	}
	// 50 base + 5*2.5 drift + 12 HVAC
	if load, _ := ctx.Get(scenario.SignalEnergy); load != 74.5 {
		t.Errorf("expected 74.5 kWh, got %v", load)
	}

	forced := NewCorrelationContext()
	forced.Set(scenario.SignalOccupancy, 0)
	forced.Set(scenario.SignalLighting, true)
	forced.ApplyCorrelations(map[string]bool{scenario.SignalLighting: true})
	if lit, _ := forced.Get(scenario.SignalLighting); lit != true {
		t.Error("a scheduled switch must not be overridden")
	}
}
