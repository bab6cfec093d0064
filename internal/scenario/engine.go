package scenario

import (
	"sync"
	"time"
)

// Engine walks a scenario's simulated clock one interval at a time
type Engine struct {
	scenario *Scenario
	start    time.Time
	interval time.Duration
	now      time.Time
	mu       sync.RWMutex
}

// NewEngine creates a new scenario engine positioned at the scenario start
func NewEngine(scenario *Scenario) (*Engine, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	start, _ := scenario.StartTime()
	interval, _ := ParseInterval(scenario.Interval)
	return &Engine{
		scenario: scenario,
		start:    start,
		interval: interval,
		now:      start,
	}, nil
}

// Now returns the current simulated time
func (e *Engine) Now() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.now
}

// Advance moves the clock forward one interval and returns the time it left
func (e *Engine) Advance() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.now
	e.now = e.now.Add(e.interval)
	return t
}

// GetSignalConfig returns the effective signal configuration at t
func (e *Engine) GetSignalConfig(signalName string, t time.Time) *SignalConfig {
	return e.scenario.GetEffectiveConfig(signalName, t)
}

// GetScenario returns the underlying scenario
func (e *Engine) GetScenario() *Scenario {
	return e.scenario
}

// Reset rewinds the clock to the scenario start
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.start
}
