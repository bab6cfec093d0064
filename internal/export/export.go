package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/xuri/excelize/v2"
)

// ErrNoData is returned when there is nothing to export. No output is produced.
var ErrNoData = errors.New("no readings to export")

// Format is an export encoding
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatXLSX   Format = "xlsx"
)

// Header is the fixed CSV column order
var Header = []string{
	"ID", "Timestamp", "Temperature", "Humidity", "SquareFootage", "Occupancy",
	"HVAC", "Lighting", "RenewableEnergy", "DayOfWeek", "Holiday", "EnergyConsumption",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatNDJSON, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use csv, json, ndjson or xlsx)", s)
}

// FormatForPath infers the format from a file extension, defaulting to CSV
func FormatForPath(path string) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return FormatCSV
}

// Row renders a reading in Header order
func Row(r models.Reading) []string {
	return []string{
		r.ID,
		models.FormatTimestamp(r.Timestamp),
		models.FormatFloat(r.Temperature),
		models.FormatFloat(r.Humidity),
		models.FormatFloat(r.SquareFootage),
		strconv.Itoa(r.Occupancy),
		models.OnOff(r.HVACOn),
		models.OnOff(r.LightingOn),
		models.FormatFloat(r.RenewableEnergy),
		r.DayOfWeek,
		models.YesNo(r.Holiday),
		models.FormatFloat(r.EnergyConsumption),
	}
}

// Encode writes readings to w in the given format
func Encode(w io.Writer, format Format, readings []models.Reading) error {
	if len(readings) == 0 {
		return ErrNoData
	}
	switch format {
	case FormatCSV:
		return writeCSV(w, readings)
	case FormatJSON:
		return writeJSON(w, readings)
	case FormatNDJSON:
		return writeNDJSON(w, readings)
	case FormatXLSX:
		return writeXLSX(w, readings)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func writeCSV(w io.Writer, readings []models.Reading) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range readings {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("failed to write reading %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, readings []models.Reading) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(readings); err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}
	return nil
}

func writeNDJSON(w io.Writer, readings []models.Reading) error {
	enc := json.NewEncoder(w)
	for _, r := range readings {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to marshal reading %s: %w", r.ID, err)
		}
	}
	return nil
}

func writeXLSX(w io.Writer, readings []models.Reading) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Readings"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for i, r := range readings {
		values := []any{
			r.ID,
			models.FormatTimestamp(r.Timestamp),
			r.Temperature,
			r.Humidity,
			r.SquareFootage,
			r.Occupancy,
			models.OnOff(r.HVACOn),
			models.OnOff(r.LightingOn),
			r.RenewableEnergy,
			r.DayOfWeek,
			models.YesNo(r.Holiday),
			r.EnergyConsumption,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write reading %s: %w", r.ID, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
