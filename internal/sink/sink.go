// Package sink mirrors live readings into external time-series and
// messaging systems.
package sink

import (
	"context"
	"log/slog"

	"github.com/energynexus/nexus-cli/internal/models"
)

// Sink receives each newly applied live reading
type Sink interface {
	Name() string
	WriteReading(ctx context.Context, r models.Reading) error
	Close() error
}

// Forward writes the reading of every reading frame to s until ctx is done
// or frames closes. Write failures are logged and counted, never fatal.
func Forward(ctx context.Context, s Sink, frames <-chan models.LiveFrame) (written, failed int) {
	for {
		select {
		case <-ctx.Done():
			return written, failed
		case frame, ok := <-frames:
			if !ok {
				return written, failed
			}
			if frame.Kind != models.FrameReading || frame.Reading == nil {
				continue
			}
			if err := s.WriteReading(ctx, *frame.Reading); err != nil {
				failed++
				slog.Warn("sink write failed", "sink", s.Name(), "reading", frame.Reading.ID, "error", err)
				continue
			}
			written++
		}
	}
}
