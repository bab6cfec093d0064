package models

import (
	"sort"
	"strings"
)

// Stats are the backend's aggregate statistics over all stored readings
type Stats struct {
	AverageTemperature     float64 `json:"averageTemperature"`
	TotalEnergyConsumption float64 `json:"totalEnergyConsumption"`
	PeakLoad               float64 `json:"peakLoad"`
	TotalRecords           int64   `json:"totalRecords"`
}

// AIInsight is the backend's model output for the latest reading
type AIInsight struct {
	AnomalyDetected        bool    `json:"anomalyDetected"`
	ExpectedValue          float64 `json:"expectedValue"`
	ActualValue            float64 `json:"actualValue"`
	DeviationPercent       float64 `json:"deviationPercent"`
	OptimizationSuggestion string  `json:"optimizationSuggestion"`
}

// SystemReport is a full snapshot: stats, recent readings (newest first) and insight
type SystemReport struct {
	Stats          Stats     `json:"stats"`
	RecentReadings []Reading `json:"recentReadings"`
	AIInsights     AIInsight `json:"aiInsights"`
}

// ReportUpdate is what a single stream update contributes to local state.
// Only the newest reading is taken from the payload; historical lists sent
// over the stream are ignored.
type ReportUpdate struct {
	Stats      Stats     `json:"stats"`
	AIInsights AIInsight `json:"aiInsights"`
	Newest     *Reading  `json:"newest,omitempty"`
}

// WeeklyStat is the average consumption for one weekday
type WeeklyStat struct {
	Day                   string   `json:"day"`
	AvgConsumption        float64  `json:"avgConsumption"`
	ExpectedConsumption   *float64 `json:"expectedConsumption,omitempty"`
	RenewableContribution *float64 `json:"renewableContribution,omitempty"`
}

var weekdayOrder = map[string]int{
	"monday": 0, "mon": 0,
	"tuesday": 1, "tue": 1,
	"wednesday": 2, "wed": 2,
	"thursday": 3, "thu": 3,
	"friday": 4, "fri": 4,
	"saturday": 5, "sat": 5,
	"sunday": 6, "sun": 6,
}

// WeekdayIndex returns 0 for Monday through 6 for Sunday, or 7 for unknown labels.
func WeekdayIndex(day string) int {
	if idx, ok := weekdayOrder[strings.ToLower(strings.TrimSpace(day))]; ok {
		return idx
	}
	return 7
}

// SortWeekly orders stats Monday-first; unknown labels go last in name order.
func SortWeekly(stats []WeeklyStat) {
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := WeekdayIndex(stats[i].Day), WeekdayIndex(stats[j].Day)
		if a != b {
			return a < b
		}
		return stats[i].Day < stats[j].Day
	})
}
