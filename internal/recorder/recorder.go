package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/energynexus/nexus-cli/internal/models"
)

// Recorder writes stream events to an NDJSON file, one event per line
type Recorder struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
	count  int
}

// NewRecorder creates a new recorder, replacing any existing file
func NewRecorder(filename string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	return &Recorder{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Record appends one event
func (r *Recorder) Record(event models.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := r.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	r.count++
	return nil
}

// Count returns how many events were recorded
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// RecordFromChannel records events until ctx is done or the channel closes,
// then closes the recorder.
func (r *Recorder) RecordFromChannel(ctx context.Context, events <-chan models.StreamEvent, onEntry func()) error {
	for {
		select {
		case <-ctx.Done():
			return r.Close()
		case event, ok := <-events:
			if !ok {
				return r.Close()
			}
			if err := r.Record(event); err != nil {
				r.Close()
				return err
			}
			if onEntry != nil {
				onEntry()
			}
		}
	}
}

// Flush flushes the buffer to disk
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Flush()
}

// Close flushes and closes the recorder. Closing twice is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	file := r.file
	r.file = nil

	if err := r.writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
