package filter

import (
	"fmt"

	"github.com/energynexus/nexus-cli/internal/models"
)

// Selection holds the interactive filter state. Switching the attribute
// clears the categorical value and the range so no threshold chosen for one
// field is ever applied to another.
type Selection struct {
	query Query
}

// NewSelection starts with no filters
func NewSelection() *Selection {
	return &Selection{query: Query{Categorical: All}}
}

// SetFreeText sets the search text
func (s *Selection) SetFreeText(text string) {
	s.query.FreeText = text
}

// SetAttribute selects the structured filter field
func (s *Selection) SetAttribute(f Field) {
	s.query.Attribute = f
	s.query.Categorical = All
	s.query.Range = nil
}

// SetCategorical sets the value a non-numeric attribute must equal
func (s *Selection) SetCategorical(value string) error {
	if s.query.Attribute == "" {
		return fmt.Errorf("no attribute selected")
	}
	if s.query.Attribute.Numeric() {
		return fmt.Errorf("%s is numeric; use a range", s.query.Attribute)
	}
	if value == "" {
		value = All
	}
	s.query.Categorical = value
	return nil
}

// SetRange sets the inclusive bounds for a numeric attribute
func (s *Selection) SetRange(r Range) error {
	if !s.query.Attribute.Numeric() {
		return fmt.Errorf("%q is not a numeric attribute", s.query.Attribute)
	}
	if r.Min > r.Max {
		return fmt.Errorf("minimum %v is above maximum %v", r.Min, r.Max)
	}
	s.query.Range = &r
	return nil
}

// Query returns a copy of the current query
func (s *Selection) Query() Query {
	q := s.query
	if q.Range != nil {
		r := *q.Range
		q.Range = &r
	}
	return q
}

// Apply filters readings with the current query
func (s *Selection) Apply(readings []models.Reading) []models.Reading {
	return Apply(readings, s.query)
}
