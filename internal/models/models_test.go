package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSystemStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    SystemStatus
		wantErr bool
	}{
		{"IDLE", StatusIdle, false},
		{"streaming\n", StatusStreaming, false},
		{`"PROCESSING"`, StatusProcessing, false},
		{"ERROR", StatusError, false},
		{"RUNNING", "", true},
		{"", "", true},
	}

	for _, test := range tests {
		got, err := ParseSystemStatus(test.input)
		if test.wantErr {
			assert.Error(t, err, "input %q", test.input)
			continue
		}
		require.NoError(t, err, "input %q", test.input)
		assert.Equal(t, test.want, got)
	}
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("ROLE_ADMIN")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	role, ok = ParseRole(" user ")
	assert.True(t, ok)
	assert.Equal(t, RoleUser, role)

	_, ok = ParseRole("guest")
	assert.False(t, ok)
}

func TestRegistration_Validate(t *testing.T) {
	valid := Registration{Username: "ops", Email: "ops@nexus.com", Password: "secret1"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		reg   Registration
		field string
	}{
		{"short username", Registration{Username: "a", Email: "a@b.com", Password: "secret1"}, "username"},
		{"bad email", Registration{Username: "ops", Email: "not-an-email", Password: "secret1"}, "email"},
		{"display name email", Registration{Username: "ops", Email: "Ops <ops@nexus.com>", Password: "secret1"}, "email"},
		{"short password", Registration{Username: "ops", Email: "ops@nexus.com", Password: "123"}, "password"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.reg.Validate()
			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, test.field, valErr.Field)
		})
	}
}

func TestSortWeekly(t *testing.T) {
	stats := []WeeklyStat{
		{Day: "Sunday"}, {Day: "Holiday"}, {Day: "Wednesday"}, {Day: "Monday"}, {Day: "Fri"},
	}
	SortWeekly(stats)

	var days []string
	for _, s := range stats {
		days = append(days, s.Day)
	}
	assert.Equal(t, []string{"Monday", "Wednesday", "Fri", "Sunday", "Holiday"}, days)
}

func TestLiveFrame_Fields(t *testing.T) {
	frame := NewLiveFrame(7, FrameReading)
	frame.Reading = &Reading{ID: "42", Temperature: 21.5, Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

	fields, err := frame.Fields()
	require.NoError(t, err)
	assert.Equal(t, "reading", fields["kind"])
	assert.Equal(t, float64(7), fields["sequence"])

	reading, ok := fields["reading"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "42", reading["id"])
	assert.NotContains(t, fields, "stats")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "On", OnOff(true))
	assert.Equal(t, "No", YesNo(false))
	assert.Equal(t, "21.5", FormatFloat(21.50))
	assert.Equal(t, "", FormatTimestamp(time.Time{}))
}
