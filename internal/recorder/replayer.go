package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
)

const maxLine = 1024 * 1024

// Replayer reads recorded stream events and plays them back with their
// original spacing, scaled by speed.
type Replayer struct {
	filename   string
	speed      float64
	loop       bool
	eventCount int
	firstEvent *models.StreamEvent
	loaded     bool
}

// NewReplayer creates a new replayer; speed <= 0 means no delays
func NewReplayer(filename string, speed float64, loop bool) *Replayer {
	return &Replayer{
		filename: filename,
		speed:    speed,
		loop:     loop,
	}
}

func newScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	return scanner
}

// loadMetadata reads the file once to cache count and first event
func (r *Replayer) loadMetadata() error {
	if r.loaded {
		return nil
	}

	file, err := os.Open(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open recording file: %w", err)
	}
	defer file.Close()

	scanner := newScanner(file)
	r.eventCount = 0

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		r.eventCount++
		if r.eventCount == 1 {
			var event models.StreamEvent
			if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
				return fmt.Errorf("failed to parse first event: %w", err)
			}
			r.firstEvent = &event
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	r.loaded = true
	return nil
}

// Replay sends events to output until the recording ends (or forever when
// looping) or ctx is cancelled.
func (r *Replayer) Replay(ctx context.Context, output chan<- models.StreamEvent) error {
	for {
		if err := r.replayOnce(ctx, output); err != nil {
			return err
		}

		if !r.loop {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (r *Replayer) replayOnce(ctx context.Context, output chan<- models.StreamEvent) error {
	file, err := os.Open(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open recording file: %w", err)
	}
	defer file.Close()

	scanner := newScanner(file)
	var last time.Time
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var event models.StreamEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return fmt.Errorf("failed to parse event at line %d: %w", lineNum, err)
		}

		if delay := r.delay(last, event.ReceivedAt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if !event.ReceivedAt.IsZero() {
			last = event.ReceivedAt
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case output <- event:
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	return nil
}

func (r *Replayer) delay(last, next time.Time) time.Duration {
	if r.speed <= 0 || last.IsZero() || next.IsZero() {
		return 0
	}
	gap := next.Sub(last)
	if gap <= 0 {
		return 0
	}
	return time.Duration(float64(gap) / r.speed)
}

// CountEvents returns the number of events in the recording
func (r *Replayer) CountEvents() (int, error) {
	if err := r.loadMetadata(); err != nil {
		return 0, err
	}
	return r.eventCount, nil
}

// GetFirstEvent returns the first event in the recording
func (r *Replayer) GetFirstEvent() (*models.StreamEvent, error) {
	if err := r.loadMetadata(); err != nil {
		return nil, err
	}
	if r.firstEvent == nil {
		return nil, fmt.Errorf("recording file is empty")
	}
	return r.firstEvent, nil
}
