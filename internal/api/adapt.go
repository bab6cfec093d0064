package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/tidwall/gjson"
)

// The backend has shipped several payload shapes over time. Everything below
// maps them onto the canonical models so nothing past this file sees them.

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// first returns the first of the candidate paths that is present
func first(v gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func parseFlag(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(r.Str)) {
		case "on", "yes", "true", "1", "y", "auto":
			return true
		}
	}
	return false
}

func parseTimestamp(r gjson.Result) (time.Time, error) {
	if !r.Exists() {
		return time.Time{}, nil
	}
	if r.Type == gjson.Number {
		return time.UnixMilli(r.Int()).UTC(), nil
	}
	// Jackson may serialize LocalDateTime as [y,m,d,h,min,s,nanos]
	if r.IsArray() {
		parts := r.Array()
		if len(parts) >= 3 {
			get := func(i int) int {
				if i < len(parts) {
					return int(parts[i].Int())
				}
				return 0
			}
			return time.Date(get(0), time.Month(get(1)), get(2), get(3), get(4), get(5), get(6), time.UTC), nil
		}
	}
	s := strings.TrimSpace(r.String())
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func adaptReading(v gjson.Result) (models.Reading, error) {
	ts, err := parseTimestamp(v.Get("timestamp"))
	if err != nil {
		return models.Reading{}, err
	}
	return models.Reading{
		ID:                first(v, "id").String(),
		Timestamp:         ts,
		Temperature:       first(v, "temperature").Float(),
		Humidity:          first(v, "humidity").Float(),
		SquareFootage:     first(v, "squareFootage", "area").Float(),
		Occupancy:         int(first(v, "occupancy").Int()),
		HVACOn:            parseFlag(first(v, "hvacUsage", "hvacStatus", "hvacOn")),
		LightingOn:        parseFlag(first(v, "lightingUsage", "lightingStatus", "lightingOn")),
		RenewableEnergy:   first(v, "renewableEnergy", "renewablePercent").Float(),
		DayOfWeek:         first(v, "dayOfWeek", "dayType").String(),
		Holiday:           parseFlag(first(v, "holiday", "isHoliday")),
		EnergyConsumption: first(v, "energyConsumption", "consumption", "energyLoad").Float(),
	}, nil
}

func adaptReadings(v gjson.Result) ([]models.Reading, error) {
	if !v.IsArray() {
		return nil, nil
	}
	items := v.Array()
	readings := make([]models.Reading, 0, len(items))
	for i, item := range items {
		r, err := adaptReading(item)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func adaptStats(v gjson.Result) models.Stats {
	return models.Stats{
		AverageTemperature:     first(v, "averageTemperature", "avgTemperature").Float(),
		TotalEnergyConsumption: first(v, "totalEnergyConsumption", "totalEnergy").Float(),
		PeakLoad:               first(v, "peakLoad").Float(),
		TotalRecords:           first(v, "totalRecords", "totalReadings").Int(),
	}
}

// adaptInsight reads the single insight object. Older payloads sent a list of
// free-form insights; those carry no comparable fields and yield the zero value.
func adaptInsight(v gjson.Result) models.AIInsight {
	if !v.IsObject() {
		return models.AIInsight{}
	}
	return models.AIInsight{
		AnomalyDetected:        parseFlag(v.Get("anomalyDetected")),
		ExpectedValue:          v.Get("expectedValue").Float(),
		ActualValue:            v.Get("actualValue").Float(),
		DeviationPercent:       v.Get("deviationPercent").Float(),
		OptimizationSuggestion: v.Get("optimizationSuggestion").String(),
	}
}

// DecodeReport adapts a full-report payload
func DecodeReport(body []byte) (*models.SystemReport, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid report JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("report is not a JSON object")
	}
	readings, err := adaptReadings(root.Get("recentReadings"))
	if err != nil {
		return nil, err
	}
	return &models.SystemReport{
		Stats:          adaptStats(root.Get("stats")),
		RecentReadings: readings,
		AIInsights:     adaptInsight(root.Get("aiInsights")),
	}, nil
}

// DecodeUpdate adapts a stream update payload. Only the first entry of
// recentReadings is kept.
func DecodeUpdate(data []byte) (*models.ReportUpdate, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid update JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("update is not a JSON object")
	}
	update := &models.ReportUpdate{
		Stats:      adaptStats(root.Get("stats")),
		AIInsights: adaptInsight(root.Get("aiInsights")),
	}
	newest := root.Get("recentReadings.0")
	if !newest.Exists() {
		newest = root.Get("reading")
	}
	if newest.IsObject() {
		r, err := adaptReading(newest)
		if err != nil {
			return nil, err
		}
		update.Newest = &r
	}
	return update, nil
}

// DecodeWeekly adapts the weekly statistics list
func DecodeWeekly(body []byte) ([]models.WeeklyStat, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid weekly stats JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("weekly stats is not a JSON array")
	}
	var out []models.WeeklyStat
	for _, item := range root.Array() {
		stat := models.WeeklyStat{
			Day:            first(item, "day", "dayOfWeek").String(),
			AvgConsumption: first(item, "avgConsumption", "actual", "averageConsumption").Float(),
		}
		if r := first(item, "expectedConsumption", "predicted"); r.Exists() {
			v := r.Float()
			stat.ExpectedConsumption = &v
		}
		if r := first(item, "renewableContribution", "renewable"); r.Exists() {
			v := r.Float()
			stat.RenewableContribution = &v
		}
		out = append(out, stat)
	}
	models.SortWeekly(out)
	return out, nil
}

// DecodeStatus accepts text/plain, a JSON string, or {"status": "..."}
func DecodeStatus(body []byte) (models.SystemStatus, error) {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		text = gjson.Get(text, "status").String()
	}
	return models.ParseSystemStatus(text)
}

// DecodeUsers adapts the admin user listing
func DecodeUsers(body []byte) ([]models.User, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid users JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("users is not a JSON array")
	}
	var users []models.User
	for _, item := range root.Array() {
		role, _ := models.ParseRole(item.Get("role").String())
		users = append(users, models.User{
			ID:       item.Get("id").String(),
			Username: item.Get("username").String(),
			Email:    item.Get("email").String(),
			Role:     role,
		})
	}
	return users, nil
}
