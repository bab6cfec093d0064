package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signal names understood by the generator
const (
	SignalTemperature   = "temperature"
	SignalHumidity      = "humidity"
	SignalSquareFootage = "square_footage"
	SignalOccupancy     = "occupancy"
	SignalHVAC          = "hvac"
	SignalLighting      = "lighting"
	SignalRenewable     = "renewable"
	SignalEnergy        = "energy"
)

// StartLayout is the format of Scenario.Start
const StartLayout = "2006-01-02 15:04"

// Scenario describes how a building behaves over a simulated week
type Scenario struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Interval    string                   `yaml:"interval"` // spacing between readings, e.g. "1h"
	Start       string                   `yaml:"start"`    // first reading, "2006-01-02 15:04"
	Holidays    []string                 `yaml:"holidays,omitempty"`
	Signals     map[string]*SignalConfig `yaml:"signals"`
	Phases      []Phase                  `yaml:"phases"`
}

// Phase overrides signals during a recurring window of the week
type Phase struct {
	Name      string                   `yaml:"name"`
	Days      []string                 `yaml:"days,omitempty"`  // weekday names; empty means every day
	Hours     string                   `yaml:"hours,omitempty"` // "8-18", end exclusive; empty means all day
	Overrides map[string]*SignalConfig `yaml:"overrides,omitempty"`
}

// SignalConfig defines the configuration for a signal
type SignalConfig struct {
	Baseline *float64 `yaml:"baseline,omitempty"`
	Noise    *float64 `yaml:"noise,omitempty"`
	Unit     string   `yaml:"unit,omitempty"`

	// Override modifiers
	Add      float64 `yaml:"add,omitempty"`
	Multiply float64 `yaml:"multiply,omitempty"`
	// Value forces a switch signal: "on" or "off"
	Value string `yaml:"value,omitempty"`
	// Probability is the chance a switch signal is on
	Probability *float64 `yaml:"probability,omitempty"`
}

// ParseInterval parses the reading spacing; empty means one hour
func ParseInterval(s string) (time.Duration, error) {
	if s == "" {
		return time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	return d, nil
}

// ParseHours parses an "8-18" window into start and end hours
func ParseHours(s string) (from, to int, err error) {
	if s == "" {
		return 0, 24, nil
	}
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("hours %q: expected from-to", s)
	}
	if from, err = strconv.Atoi(strings.TrimSpace(lo)); err != nil {
		return 0, 0, fmt.Errorf("hours %q: %w", s, err)
	}
	if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
		return 0, 0, fmt.Errorf("hours %q: %w", s, err)
	}
	if from < 0 || to > 24 || from >= to {
		return 0, 0, fmt.Errorf("hours %q: out of range", s)
	}
	return from, to, nil
}

// Active reports whether the phase applies at t
func (p *Phase) Active(t time.Time) bool {
	if len(p.Days) > 0 {
		day := t.Weekday().String()
		found := false
		for _, d := range p.Days {
			if strings.EqualFold(d, day) || strings.EqualFold(d, day[:3]) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	from, to, err := ParseHours(p.Hours)
	if err != nil {
		return false
	}
	return t.Hour() >= from && t.Hour() < to
}

// Validate checks the fields the generator depends on
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if _, err := ParseInterval(s.Interval); err != nil {
		return fmt.Errorf("scenario %s: invalid interval: %w", s.Name, err)
	}
	if _, err := s.StartTime(); err != nil {
		return fmt.Errorf("scenario %s: invalid start: %w", s.Name, err)
	}
	for _, p := range s.Phases {
		if _, _, err := ParseHours(p.Hours); err != nil {
			return fmt.Errorf("scenario %s phase %s: %w", s.Name, p.Name, err)
		}
	}
	for _, h := range s.Holidays {
		if _, err := time.Parse(time.DateOnly, h); err != nil {
			return fmt.Errorf("scenario %s: invalid holiday %q", s.Name, h)
		}
	}
	return nil
}

// StartTime returns the first reading time; empty means the most recent Monday
func (s *Scenario) StartTime() (time.Time, error) {
	if s.Start == "" {
		now := time.Now().Truncate(time.Hour)
		offset := (int(now.Weekday()) + 6) % 7
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
		return midnight.AddDate(0, 0, -offset), nil
	}
	return time.ParseInLocation(StartLayout, s.Start, time.Local)
}

// IsHoliday reports whether t falls on one of the listed dates
func (s *Scenario) IsHoliday(t time.Time) bool {
	date := t.Format(time.DateOnly)
	for _, h := range s.Holidays {
		if h == date {
			return true
		}
	}
	return false
}

// GetEffectiveConfig returns the signal config for a given signal name at a specific time
func (s *Scenario) GetEffectiveConfig(signalName string, t time.Time) *SignalConfig {
	baseConfig := s.Signals[signalName]
	if baseConfig == nil {
		return nil
	}

	phase := s.getCurrentPhase(t)
	if phase == nil {
		return baseConfig
	}

	if override, ok := phase.Overrides[signalName]; ok {
		merged := *baseConfig
		if override.Add != 0 {
			merged.Add = override.Add
		}
		if override.Multiply != 0 {
			merged.Multiply = override.Multiply
		}
		if override.Value != "" {
			merged.Value = override.Value
		}
		if override.Baseline != nil {
			merged.Baseline = override.Baseline
		}
		if override.Noise != nil {
			merged.Noise = override.Noise
		}
		if override.Probability != nil {
			merged.Probability = override.Probability
		}
		return &merged
	}

	return baseConfig
}

// getCurrentPhase returns the first phase active at t
func (s *Scenario) getCurrentPhase(t time.Time) *Phase {
	for i := range s.Phases {
		if s.Phases[i].Active(t) {
			return &s.Phases[i]
		}
	}
	return nil
}
