package generator

import (
	"math"

	"github.com/energynexus/nexus-cli/internal/scenario"
)

// Consumption model coefficients, in kWh
const (
	comfortTemperature = 22.0
	perOccupant        = 1.2
	perDegreeOff       = 2.5
	hvacLoad           = 12.0
	lightingLoad       = 6.0
	perSquareFoot      = 0.004
	renewableOffset    = 0.3
)

// CorrelationContext holds generated signal values for correlation
type CorrelationContext struct {
	values map[string]any
}

// NewCorrelationContext creates a new correlation context
func NewCorrelationContext() *CorrelationContext {
	return &CorrelationContext{
		values: make(map[string]any),
	}
}

// Set stores a signal value
func (c *CorrelationContext) Set(name string, value any) {
	c.values[name] = value
}

// Get retrieves a signal value
func (c *CorrelationContext) Get(name string) (any, bool) {
	val, ok := c.values[name]
	return val, ok
}

func (c *CorrelationContext) floatValue(name string) float64 {
	switch v := c.values[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (c *CorrelationContext) boolValue(name string) bool {
	v, _ := c.values[name].(bool)
	return v
}

// ApplyCorrelations applies correlation rules between signals. forced names
// the switches whose value was fixed by the scenario and must not change.
func (c *CorrelationContext) ApplyCorrelations(forced map[string]bool) {
	// Empty zone: lights go off unless scheduled
	if c.floatValue(scenario.SignalOccupancy) == 0 && !forced[scenario.SignalLighting] {
		c.Set(scenario.SignalLighting, false)
	}

	// HVAC kicks in when the zone drifts far from comfort
	if !forced[scenario.SignalHVAC] && math.Abs(c.floatValue(scenario.SignalTemperature)-comfortTemperature) > 3 {
		c.Set(scenario.SignalHVAC, true)
	}

	// Consumption follows occupancy, temperature drift and appliances, less
	// part of the renewable output
	load := c.floatValue(scenario.SignalEnergy)
	load += c.floatValue(scenario.SignalOccupancy) * perOccupant
	load += math.Abs(c.floatValue(scenario.SignalTemperature)-comfortTemperature) * perDegreeOff
	load += c.floatValue(scenario.SignalSquareFootage) * perSquareFoot
	if c.boolValue(scenario.SignalHVAC) {
		load += hvacLoad
	}
	if c.boolValue(scenario.SignalLighting) {
		load += lightingLoad
	}
	load -= c.floatValue(scenario.SignalRenewable) * renewableOffset
	c.Set(scenario.SignalEnergy, round(clamp(load, 0, 10000), 2))
}
