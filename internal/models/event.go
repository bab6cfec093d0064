package models

import (
	"encoding/json"
	"time"
)

// Stream event names used by the backend
const (
	EventUpdate = "update"
	EventStatus = "status"
)

// StreamEvent is one server-sent event as received from the backend
type StreamEvent struct {
	ID         string    `json:"id,omitempty"`
	Name       string    `json:"event"`
	Data       string    `json:"data"`
	ReceivedAt time.Time `json:"received_at"`
}

// FrameKind identifies what changed in a live frame
type FrameKind string

const (
	FrameReading FrameKind = "reading"
	FrameStats   FrameKind = "stats"
	FrameStatus  FrameKind = "status"
)

// LiveFrame is the relay envelope describing one applied change
type LiveFrame struct {
	Sequence  int64        `json:"sequence"`
	Kind      FrameKind    `json:"kind"`
	Timestamp string       `json:"ts"`
	Reading   *Reading     `json:"reading,omitempty"`
	Stats     *Stats       `json:"stats,omitempty"`
	Insight   *AIInsight   `json:"insight,omitempty"`
	Status    SystemStatus `json:"status,omitempty"`
}

// NewLiveFrame creates a frame stamped with the current time
func NewLiveFrame(sequence int64, kind FrameKind) LiveFrame {
	return LiveFrame{
		Sequence:  sequence,
		Kind:      kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Fields flattens the frame into a generic map, the shape protobuf Struct encoding needs.
func (f LiveFrame) Fields() (map[string]any, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
