package models

import (
	"strconv"
	"time"
)

// Reading is a single telemetry sample from one building zone.
// Readings are immutable once received.
type Reading struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Temperature       float64   `json:"temperature"`
	Humidity          float64   `json:"humidity"`
	SquareFootage     float64   `json:"squareFootage"`
	Occupancy         int       `json:"occupancy"`
	HVACOn            bool      `json:"hvacOn"`
	LightingOn        bool      `json:"lightingOn"`
	RenewableEnergy   float64   `json:"renewableEnergy"`
	DayOfWeek         string    `json:"dayOfWeek"`
	Holiday           bool      `json:"holiday"`
	EnergyConsumption float64   `json:"energyConsumption"`
}

// TimestampLayout is how reading timestamps are rendered in tables and exports.
const TimestampLayout = "2006-01-02 15:04:05"

// OnOff renders an appliance state the way the backend dataset spells it.
func OnOff(on bool) string {
	if on {
		return "On"
	}
	return "Off"
}

// YesNo renders the holiday flag the way the backend dataset spells it.
func YesNo(yes bool) string {
	if yes {
		return "Yes"
	}
	return "No"
}

// FormatFloat renders a measurement without trailing zeros.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatTimestamp renders a reading timestamp, empty for the zero time.
func FormatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(TimestampLayout)
}
