package cli

import (
	"testing"

	"github.com/energynexus/nexus-cli/internal/filter"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeValues(t *testing.T) {
	readings := []models.Reading{
		{ID: "1", HVACOn: true, DayOfWeek: "Tuesday"},
		{ID: "2", DayOfWeek: "Monday"},
		{ID: "3", HVACOn: true, DayOfWeek: "Monday"},
	}

	values, err := attributeValues(readings, "hvac")
	require.NoError(t, err)
	assert.Equal(t, []string{filter.All, "Off", "On"}, values)

	values, err = attributeValues(readings, "dayOfWeek")
	require.NoError(t, err)
	assert.Equal(t, []string{filter.All, "Monday", "Tuesday"}, values)

	_, err = attributeValues(readings, "")
	assert.Error(t, err)
	_, err = attributeValues(readings, "colour")
	assert.Error(t, err)
}

func TestParseTickRate(t *testing.T) {
	d, err := parseTickRate("2hz")
	require.NoError(t, err)
	assert.Equal(t, "500ms", d.String())

	_, err = parseTickRate("fast")
	assert.Error(t, err)
}
