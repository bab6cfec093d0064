package filter

import (
	"fmt"
	"testing"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReadings() []models.Reading {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return []models.Reading{
		{ID: "1", Timestamp: ts, Temperature: 30, Humidity: 40, Occupancy: 12, HVACOn: true, DayOfWeek: "Monday", EnergyConsumption: 75.2},
		{ID: "2", Timestamp: ts.Add(time.Hour), Temperature: 20, Humidity: 55, Occupancy: 3, DayOfWeek: "Tuesday", Holiday: true, EnergyConsumption: 61},
		{ID: "3", Timestamp: ts.Add(2 * time.Hour), Temperature: 25, Humidity: 50, Occupancy: 8, LightingOn: true, DayOfWeek: "monday", EnergyConsumption: 88.9},
	}
}

func ids(readings []models.Reading) []string {
	out := make([]string, 0, len(readings))
	for _, r := range readings {
		out = append(out, r.ID)
	}
	return out
}

func TestApply_RangeScenario(t *testing.T) {
	readings := []models.Reading{{ID: "1", Temperature: 30}, {ID: "2", Temperature: 20}}
	got := Apply(readings, Query{Attribute: FieldTemperature, Range: &Range{Min: 0, Max: 25}})
	assert.Equal(t, []string{"2"}, ids(got))
}

func TestApply_RangeIsInclusive(t *testing.T) {
	readings := []models.Reading{
		{ID: "at-max", Temperature: 25},
		{ID: "above", Temperature: 25.000001},
		{ID: "at-min", Temperature: 10},
	}
	got := Apply(readings, Query{Attribute: FieldTemperature, Range: &Range{Min: 10, Max: 25}})
	assert.Equal(t, []string{"at-max", "at-min"}, ids(got))
}

func TestApply_FreeText(t *testing.T) {
	readings := sampleReadings()
	tests := []struct {
		text string
		want []string
	}{
		{"", []string{"1", "2", "3"}},
		{"MONDAY", []string{"1", "3"}},
		{"88.9", []string{"3"}},
		{"yes", []string{"2"}},
		{"2026-03-02 10:30", []string{"2"}},
		{"no such thing", []string{}},
		{" 10:30", []string{"2"}},
		{" monday", []string{}},
		{"  ", []string{}},
	}
	for _, test := range tests {
		got := Apply(readings, Query{FreeText: test.text})
		assert.Equal(t, test.want, ids(got), "text %q", test.text)
	}
}

func TestApply_CategoricalCaseInsensitive(t *testing.T) {
	readings := sampleReadings()

	got := Apply(readings, Query{Attribute: FieldDayOfWeek, Categorical: "MONDAY"})
	assert.Equal(t, []string{"1", "3"}, ids(got))

	got = Apply(readings, Query{Attribute: FieldHVAC, Categorical: "on"})
	assert.Equal(t, []string{"1"}, ids(got))

	got = Apply(readings, Query{Attribute: FieldHVAC, Categorical: All})
	assert.Len(t, got, 3)
}

func TestApply_TextAndAttributeCompose(t *testing.T) {
	got := Apply(sampleReadings(), Query{
		FreeText:  "monday",
		Attribute: FieldEnergyConsumption,
		Range:     &Range{Min: 80, Max: 100},
	})
	assert.Equal(t, []string{"3"}, ids(got))
}

func TestApply_SubsetAndIdempotent(t *testing.T) {
	readings := sampleReadings()
	queries := []Query{
		{FreeText: "1"},
		{FreeText: "on", Attribute: FieldHoliday, Categorical: "No"},
		{Attribute: FieldHumidity, Range: &Range{Min: 45, Max: 60}},
		{Attribute: FieldOccupancy, Range: &Range{Min: 100, Max: 0}},
	}
	for i, q := range queries {
		once := Apply(readings, q)
		twice := Apply(once, q)
		assert.Equal(t, once, twice, "query %d", i)

		known := map[string]models.Reading{}
		for _, r := range readings {
			known[r.ID] = r
		}
		for _, r := range once {
			assert.Equal(t, known[r.ID], r, "query %d invented a row", i)
		}
		assert.LessOrEqual(t, len(once), len(readings))
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	readings := sampleReadings()
	before := fmt.Sprint(readings)
	Apply(readings, Query{FreeText: "monday"})
	assert.Equal(t, before, fmt.Sprint(readings))
}

func TestSelection_SwitchingAttributeResetsState(t *testing.T) {
	sel := NewSelection()
	sel.SetAttribute(FieldTemperature)
	require.NoError(t, sel.SetRange(Range{Min: 0, Max: 22}))
	assert.Equal(t, []string{"2"}, ids(sel.Apply(sampleReadings())))

	sel.SetAttribute(FieldDayOfWeek)
	q := sel.Query()
	assert.Nil(t, q.Range)
	assert.Equal(t, All, q.Categorical)
	assert.Len(t, sel.Apply(sampleReadings()), 3)

	require.NoError(t, sel.SetCategorical("tuesday"))
	assert.Equal(t, []string{"2"}, ids(sel.Apply(sampleReadings())))

	// back to a numeric field: no categorical or range carries over
	sel.SetAttribute(FieldHumidity)
	assert.Len(t, sel.Apply(sampleReadings()), 3)
}

func TestSelection_RejectsMismatchedFilters(t *testing.T) {
	sel := NewSelection()
	assert.Error(t, sel.SetCategorical("x"))

	sel.SetAttribute(FieldHVAC)
	assert.Error(t, sel.SetRange(Range{Min: 0, Max: 1}))

	sel.SetAttribute(FieldTemperature)
	assert.Error(t, sel.SetCategorical("On"))
	assert.Error(t, sel.SetRange(Range{Min: 5, Max: 1}))
}

func TestParseField(t *testing.T) {
	f, err := ParseField("EnergyConsumption")
	require.NoError(t, err)
	assert.Equal(t, FieldEnergyConsumption, f)

	f, err = ParseField("hvacUsage")
	require.NoError(t, err)
	assert.Equal(t, FieldHVAC, f)

	_, err = ParseField("colour")
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("", "")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ParseRange("", "25")
	require.NoError(t, err)
	assert.True(t, r.Contains(-40))
	assert.False(t, r.Contains(25.5))

	_, err = ParseRange("30", "20")
	assert.Error(t, err)
	_, err = ParseRange("abc", "")
	assert.Error(t, err)
}

func TestDistinctValues(t *testing.T) {
	readings := sampleReadings()
	assert.Equal(t, []string{All, "Monday", "monday", "Tuesday"}, DistinctValues(readings, FieldDayOfWeek))
	assert.Equal(t, []string{All, "20", "25", "30"}, DistinctValues(readings, FieldTemperature))
	assert.Equal(t, []string{All, "Off", "On"}, DistinctValues(readings, FieldHVAC))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize(sampleReadings())
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 25.0, s.MeanTemperature, 1e-9)
	assert.InDelta(t, 225.1, s.TotalConsumption, 1e-9)
	assert.Equal(t, 88.9, s.PeakConsumption)
	assert.Equal(t, 75.2, s.MedianConsumption)
	assert.LessOrEqual(t, s.P95Consumption, s.PeakConsumption)
}
