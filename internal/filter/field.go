package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/energynexus/nexus-cli/internal/models"
)

// Field names a reading attribute
type Field string

const (
	FieldID                Field = "id"
	FieldTimestamp         Field = "timestamp"
	FieldTemperature       Field = "temperature"
	FieldHumidity          Field = "humidity"
	FieldSquareFootage     Field = "squareFootage"
	FieldOccupancy         Field = "occupancy"
	FieldHVAC              Field = "hvac"
	FieldLighting          Field = "lighting"
	FieldRenewableEnergy   Field = "renewableEnergy"
	FieldDayOfWeek         Field = "dayOfWeek"
	FieldHoliday           Field = "holiday"
	FieldEnergyConsumption Field = "energyConsumption"
)

// Fields lists every attribute in display order
var Fields = []Field{
	FieldID,
	FieldTimestamp,
	FieldTemperature,
	FieldHumidity,
	FieldSquareFootage,
	FieldOccupancy,
	FieldHVAC,
	FieldLighting,
	FieldRenewableEnergy,
	FieldDayOfWeek,
	FieldHoliday,
	FieldEnergyConsumption,
}

var aliases = map[string]Field{
	"hvacusage":      FieldHVAC,
	"hvacstatus":     FieldHVAC,
	"lightingusage":  FieldLighting,
	"lightingstatus": FieldLighting,
	"consumption":    FieldEnergyConsumption,
	"energy":         FieldEnergyConsumption,
	"renewable":      FieldRenewableEnergy,
	"day":            FieldDayOfWeek,
	"area":           FieldSquareFootage,
	"temp":           FieldTemperature,
}

// ParseField resolves a field name case-insensitively
func ParseField(s string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, f := range Fields {
		if strings.ToLower(string(f)) == key {
			return f, nil
		}
	}
	if f, ok := aliases[key]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// Numeric reports whether the field is filtered by range
func (f Field) Numeric() bool {
	switch f {
	case FieldTemperature, FieldHumidity, FieldEnergyConsumption,
		FieldRenewableEnergy, FieldOccupancy, FieldSquareFootage:
		return true
	}
	return false
}

// Value renders the field of r the way exports render it
func (f Field) Value(r models.Reading) string {
	switch f {
	case FieldID:
		return r.ID
	case FieldTimestamp:
		return models.FormatTimestamp(r.Timestamp)
	case FieldTemperature:
		return models.FormatFloat(r.Temperature)
	case FieldHumidity:
		return models.FormatFloat(r.Humidity)
	case FieldSquareFootage:
		return models.FormatFloat(r.SquareFootage)
	case FieldOccupancy:
		return strconv.Itoa(r.Occupancy)
	case FieldHVAC:
		return models.OnOff(r.HVACOn)
	case FieldLighting:
		return models.OnOff(r.LightingOn)
	case FieldRenewableEnergy:
		return models.FormatFloat(r.RenewableEnergy)
	case FieldDayOfWeek:
		return r.DayOfWeek
	case FieldHoliday:
		return models.YesNo(r.Holiday)
	case FieldEnergyConsumption:
		return models.FormatFloat(r.EnergyConsumption)
	}
	return ""
}

// Number returns the numeric value of a numeric field
func (f Field) Number(r models.Reading) (float64, bool) {
	switch f {
	case FieldTemperature:
		return r.Temperature, true
	case FieldHumidity:
		return r.Humidity, true
	case FieldSquareFootage:
		return r.SquareFootage, true
	case FieldOccupancy:
		return float64(r.Occupancy), true
	case FieldRenewableEnergy:
		return r.RenewableEnergy, true
	case FieldEnergyConsumption:
		return r.EnergyConsumption, true
	}
	return 0, false
}
