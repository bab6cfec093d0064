package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/energynexus/nexus-cli/internal/scenario"
)

// SignalGenerator generates a specific signal value at simulated time t
type SignalGenerator func(rng *rand.Rand, config *scenario.SignalConfig, t time.Time) any

// signalOrder fixes the order values are drawn in, so a seed always
// produces the same dataset
var signalOrder = []string{
	scenario.SignalTemperature,
	scenario.SignalHumidity,
	scenario.SignalSquareFootage,
	scenario.SignalOccupancy,
	scenario.SignalHVAC,
	scenario.SignalLighting,
	scenario.SignalRenewable,
	scenario.SignalEnergy,
}

// GetAllSignals returns all available signal generators
func GetAllSignals() map[string]SignalGenerator {
	return map[string]SignalGenerator{
		scenario.SignalTemperature:   generateTemperature,
		scenario.SignalHumidity:      generateHumidity,
		scenario.SignalSquareFootage: generateSquareFootage,
		scenario.SignalOccupancy:     generateOccupancy,
		scenario.SignalHVAC:          generateSwitch,
		scenario.SignalLighting:      generateSwitch,
		scenario.SignalRenewable:     generateRenewable,
		scenario.SignalEnergy:        generateBaseLoad,
	}
}

// generateTemperature generates indoor temperature in °C
func generateTemperature(rng *rand.Rand, config *scenario.SignalConfig, t time.Time) any {
	value := modulate(config, getFloat(config.Baseline, 21.5))
	value += rng.NormFloat64() * getFloat(config.Noise, 0.8)
	return round(clamp(value, 10, 35), 2)
}

// generateHumidity generates relative humidity in %
func generateHumidity(rng *rand.Rand, config *scenario.SignalConfig, t time.Time) any {
	value := modulate(config, getFloat(config.Baseline, 45))
	value += rng.NormFloat64() * getFloat(config.Noise, 4)
	return round(clamp(value, 10, 90), 2)
}

// generateSquareFootage returns the zone area; it only varies when noise is set
func generateSquareFootage(rng *rand.Rand, config *scenario.SignalConfig, t time.Time) any {
	value := modulate(config, getFloat(config.Baseline, 1500))
	value += rng.NormFloat64() * getFloat(config.Noise, 0)
	return math.Round(clamp(value, 100, 100000))
}

// generateOccupancy generates the number of people in the zone
func generateOccupancy(rng *rand.Rand, config *scenario.SignalConfig, t time.Time) any {
	value := modulate(config, getFloat(config.Baseline, 3))
	value += rng.NormFloat64() * getFloat(config.Noise, 1)
	return int(math.Round(clamp(value, 0, 500)))
}

// generateSwitch generates an on/off appliance state
func generateSwitch(rng *rand.Rand, config *scenario.SignalConfig, t time.Time) any {
	switch config.Value {
	case "on":
		return true
	case "off":
		return false
	}
	return rng.Float64() < getFloat(config.Probability, 0.5)
}

// generateRenewable generates on-site renewable output in kWh, following daylight
func generateRenewable(rng *rand.Rand, config *scenario.SignalConfig, t time.Time) any {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	daylight := math.Sin(math.Pi * (hour - 6) / 12)
	if daylight < 1e-9 {
		daylight = 0
	}
	value := modulate(config, getFloat(config.Baseline, 15)) * daylight
	if daylight > 0 {
		value += rng.NormFloat64() * getFloat(config.Noise, 2)
	}
	return round(clamp(value, 0, 1000), 2)
}

// generateBaseLoad generates the always-on share of consumption in kWh
func generateBaseLoad(rng *rand.Rand, config *scenario.SignalConfig, t time.Time) any {
	value := modulate(config, getFloat(config.Baseline, 55))
	value += rng.NormFloat64() * getFloat(config.Noise, 3)
	return clamp(value, 0, 10000)
}

// Helper functions

func modulate(config *scenario.SignalConfig, value float64) float64 {
	if config.Add != 0 {
		value += config.Add
	}
	if config.Multiply != 0 {
		value *= config.Multiply
	}
	return value
}

func getFloat(val *float64, defaultVal float64) float64 {
	if val == nil {
		return defaultVal
	}
	return *val
}

func round(val float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(val*p) / p
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
