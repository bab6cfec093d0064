package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/energynexus/nexus-cli/internal/export"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteExport_EmptyViewIsNotice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.csv")
	fw, err := export.NewFileWriter(path, "")
	require.NoError(t, err)

	var notice bytes.Buffer
	written, err := writeExport(fw, nil, &notice)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Contains(t, notice.String(), "Nothing to export")

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no file should be created for an empty view")
}

func TestWriteExport_WritesReadings(t *testing.T) {
	var out, notice bytes.Buffer
	readings := []models.Reading{{ID: "1", Timestamp: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), Temperature: 21.5}}

	written, err := writeExport(export.NewStreamWriter(&out, export.FormatCSV), readings, &notice)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Empty(t, notice.String())
	assert.Contains(t, out.String(), "21.5")
}
