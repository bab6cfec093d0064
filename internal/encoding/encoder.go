package encoding

import (
	"encoding/json"
	"fmt"

	"github.com/energynexus/nexus-cli/internal/models"
)

// Format represents the encoding format
type Format string

const (
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"
)

// Encoder encodes live frames to bytes
type Encoder interface {
	Encode(frame models.LiveFrame) ([]byte, error)
	ContentType() string
	// Binary reports whether the payload must be sent as a binary message
	Binary() bool
}

// JSONEncoder encodes frames as JSON
type JSONEncoder struct{}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

func (e *JSONEncoder) Encode(frame models.LiveFrame) ([]byte, error) {
	return json.Marshal(frame)
}

func (e *JSONEncoder) ContentType() string {
	return "application/json"
}

func (e *JSONEncoder) Binary() bool {
	return false
}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatProtobuf, "proto":
		return FormatProtobuf, nil
	}
	return "", fmt.Errorf("unknown encoding %q (expected json or protobuf)", s)
}

// NewEncoder creates an encoder for the given format
func NewEncoder(format Format) Encoder {
	switch format {
	case FormatProtobuf:
		return NewProtobufEncoder()
	default:
		return NewJSONEncoder()
	}
}
