package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/xuri/excelize/v2"
)

func testReadings() []models.Reading {
	return []models.Reading{
		{
			ID:                "42",
			Timestamp:         time.Date(2026, 1, 16, 12, 0, 0, 0, time.UTC),
			Temperature:       22.5,
			Humidity:          45,
			SquareFootage:     1500,
			Occupancy:         7,
			HVACOn:            true,
			RenewableEnergy:   12.25,
			DayOfWeek:         "Friday, late",
			Holiday:           true,
			EnergyConsumption: 80.1,
		},
		{ID: "41", DayOfWeek: `Says "hi"`},
	}
}

func TestEncode_CSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatCSV, testReadings()); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Fatal("CSV output should start with a UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "ID,Timestamp,Temperature,Humidity,SquareFootage,Occupancy,HVAC,Lighting,RenewableEnergy,DayOfWeek,Holiday,EnergyConsumption" {
		t.Errorf("unexpected header: %v", records[0])
	}

	want := []string{"42", "2026-01-16 12:00:00", "22.5", "45", "1500", "7", "On", "Off", "12.25", "Friday, late", "Yes", "80.1"}
	for i, v := range want {
		if records[1][i] != v {
			t.Errorf("column %s: expected %q, got %q", Header[i], v, records[1][i])
		}
	}
	if records[2][9] != `Says "hi"` {
		t.Errorf("quoted field did not round trip: %q", records[2][9])
	}
	if !strings.Contains(buf.String(), `"Friday, late"`) {
		t.Error("field containing a comma should be quoted")
	}
}

func TestEncode_NoData(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatJSON, FormatNDJSON, FormatXLSX} {
		var buf bytes.Buffer
		err := Encode(&buf, format, nil)
		if !errors.Is(err, ErrNoData) {
			t.Errorf("%s: expected ErrNoData, got %v", format, err)
		}
		if buf.Len() != 0 {
			t.Errorf("%s: nothing should be written, got %d bytes", format, buf.Len())
		}
	}
}

func TestEncode_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatNDJSON, testReadings()); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var parsed models.Reading
	if err := json.Unmarshal([]byte(lines[0]), &parsed); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if parsed.ID != "42" || !parsed.HVACOn {
		t.Errorf("unexpected reading: %+v", parsed)
	}
}

func TestStreamWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	writer := NewStreamWriter(&buf, FormatJSON)

	if err := writer.Write(testReadings()); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	var parsed []models.Reading
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\nOutput: %s", err, buf.String())
	}
	if len(parsed) != 2 {
		t.Errorf("expected 2 readings, got %d", len(parsed))
	}
}

func TestFileWriter_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "readings.xlsx")

	writer, err := NewFileWriter(path, "")
	if err != nil {
		t.Fatalf("failed to create file writer: %v", err)
	}
	if err := writer.Write(testReadings()); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Readings")
	if err != nil {
		t.Fatalf("failed to read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[1][0] != "42" {
		t.Errorf("unexpected first column: %q, %q", rows[0][0], rows[1][0])
	}
}

func TestFileWriter_NoDataCreatesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readings.csv")

	writer, err := NewFileWriter(path, FormatCSV)
	if err != nil {
		t.Fatalf("failed to create file writer: %v", err)
	}
	if err := writer.Write([]models.Reading{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files, found %d", len(entries))
	}
}

func TestFileWriter_RejectsUnknownFormat(t *testing.T) {
	if _, err := NewFileWriter("out.txt", "yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestMultiWriter(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	multi := NewMultiWriter(NewStreamWriter(&buf1, FormatCSV), NewStreamWriter(&buf2, FormatCSV))

	if err := multi.Write(testReadings()); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if buf1.Len() == 0 || buf1.String() != buf2.String() {
		t.Error("both buffers should have identical content")
	}
	if err := multi.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]Format{
		"a.csv":    FormatCSV,
		"a.XLSX":   FormatXLSX,
		"a.ndjson": FormatNDJSON,
		"a.json":   FormatJSON,
		"a":        FormatCSV,
	}
	for path, want := range tests {
		if got := FormatForPath(path); got != want {
			t.Errorf("%s: expected %s, got %s", path, want, got)
		}
	}
}
