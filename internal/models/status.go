package models

import (
	"fmt"
	"strings"
)

// SystemStatus reflects the backend simulation engine state
type SystemStatus string

const (
	StatusIdle       SystemStatus = "IDLE"
	StatusProcessing SystemStatus = "PROCESSING"
	StatusStreaming  SystemStatus = "STREAMING"
	StatusError      SystemStatus = "ERROR"
)

// Valid reports whether s is one of the known engine states
func (s SystemStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusProcessing, StatusStreaming, StatusError:
		return true
	}
	return false
}

// ParseSystemStatus accepts a bare or JSON-quoted status string.
// Unknown values are rejected.
func ParseSystemStatus(raw string) (SystemStatus, error) {
	v := strings.TrimSpace(raw)
	v = strings.Trim(v, `"`)
	s := SystemStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown system status %q", raw)
	}
	return s, nil
}
