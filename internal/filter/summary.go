package filter

import (
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/montanaflynn/stats"
)

// Summary aggregates a filtered view. It describes only the readings held
// locally and is distinct from the backend's global stats.
type Summary struct {
	Count             int
	MeanTemperature   float64
	TotalConsumption  float64
	PeakConsumption   float64
	MedianConsumption float64
	P95Consumption    float64
}

// Summarize computes a Summary; an empty view yields the zero value
func Summarize(view []models.Reading) Summary {
	if len(view) == 0 {
		return Summary{}
	}
	temps := make(stats.Float64Data, 0, len(view))
	loads := make(stats.Float64Data, 0, len(view))
	for _, r := range view {
		temps = append(temps, r.Temperature)
		loads = append(loads, r.EnergyConsumption)
	}

	s := Summary{Count: len(view)}
	s.MeanTemperature, _ = stats.Mean(temps)
	s.TotalConsumption, _ = stats.Sum(loads)
	s.PeakConsumption, _ = stats.Max(loads)
	s.MedianConsumption, _ = stats.Median(loads)
	p95, err := stats.Percentile(loads, 95)
	if err != nil {
		// too few samples to interpolate
		p95 = s.PeakConsumption
	}
	s.P95Consumption = p95
	return s
}
