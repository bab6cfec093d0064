package filter

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/energynexus/nexus-cli/internal/models"
)

// All is the categorical value that keeps every reading
const All = "All"

// Range is an inclusive numeric interval
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range, bounds included
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Query describes a view over a reading set. Free text and the structured
// attribute filter are combined with AND.
type Query struct {
	FreeText string
	// Attribute is the single structured filter; empty disables it
	Attribute   Field
	Categorical string
	// Range applies to numeric attributes; nil keeps everything
	Range *Range
}

// Apply returns the readings matching q, in their original order. Free text
// is matched as given, surrounding spaces included.
func Apply(readings []models.Reading, q Query) []models.Reading {
	text := strings.ToLower(q.FreeText)
	out := make([]models.Reading, 0, len(readings))
	for _, r := range readings {
		if text != "" && !matchesText(r, text) {
			continue
		}
		if !matchesAttribute(r, q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesText(r models.Reading, text string) bool {
	for _, f := range Fields {
		if strings.Contains(strings.ToLower(f.Value(r)), text) {
			return true
		}
	}
	return false
}

func matchesAttribute(r models.Reading, q Query) bool {
	if q.Attribute == "" {
		return true
	}
	if q.Attribute.Numeric() {
		if q.Range == nil {
			return true
		}
		v, _ := q.Attribute.Number(r)
		return q.Range.Contains(v)
	}
	if q.Categorical == "" || strings.EqualFold(q.Categorical, All) {
		return true
	}
	return strings.EqualFold(q.Attribute.Value(r), q.Categorical)
}

// DistinctValues lists the values a field takes, preceded by All. Numeric
// fields sort by value, others alphabetically.
func DistinctValues(readings []models.Reading, f Field) []string {
	seen := make(map[string]struct{})
	var values []string
	for _, r := range readings {
		v := f.Value(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}

	if f.Numeric() {
		sort.Slice(values, func(i, j int) bool {
			a, _ := strconv.ParseFloat(values[i], 64)
			b, _ := strconv.ParseFloat(values[j], 64)
			return a < b
		})
	} else if f == FieldDayOfWeek {
		sort.Slice(values, func(i, j int) bool {
			a, b := models.WeekdayIndex(values[i]), models.WeekdayIndex(values[j])
			if a != b {
				return a < b
			}
			return values[i] < values[j]
		})
	} else {
		sort.Strings(values)
	}
	return append([]string{All}, values...)
}

// ParseRange builds a range from optional bounds; missing bounds stay open
func ParseRange(lo, hi string) (*Range, error) {
	if lo == "" && hi == "" {
		return nil, nil
	}
	r := &Range{Min: -math.MaxFloat64, Max: math.MaxFloat64}
	if lo != "" {
		v, err := strconv.ParseFloat(lo, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid minimum %q: %w", lo, err)
		}
		r.Min = v
	}
	if hi != "" {
		v, err := strconv.ParseFloat(hi, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid maximum %q: %w", hi, err)
		}
		r.Max = v
	}
	if r.Min > r.Max {
		return nil, fmt.Errorf("minimum %s is above maximum %s", lo, hi)
	}
	return r, nil
}
