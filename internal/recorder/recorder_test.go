package recorder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
)

func sampleEvents() []models.StreamEvent {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []models.StreamEvent{
		{ID: "1", Name: models.EventStatus, Data: `"STREAMING"`, ReceivedAt: base},
		{ID: "2", Name: models.EventUpdate, Data: `{"stats":{"totalRecords":1}}`, ReceivedAt: base.Add(20 * time.Millisecond)},
		{ID: "3", Name: models.EventUpdate, Data: `{"stats":{"totalRecords":2}}`, ReceivedAt: base.Add(40 * time.Millisecond)},
	}
}

func writeRecording(t *testing.T, events []models.StreamEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.ndjson")
	rec, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}
	for _, e := range events {
		if err := rec.Record(e); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	return path
}

func TestRecorder_WritesOneLinePerEvent(t *testing.T) {
	path := writeRecording(t, sampleEvents())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read recording: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"event":"status"`) {
		t.Errorf("first line should be the status event: %s", lines[0])
	}
}

func TestRecorder_FromChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.ndjson")
	rec, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	events := make(chan models.StreamEvent, 3)
	for _, e := range sampleEvents() {
		events <- e
	}
	close(events)

	entries := 0
	if err := rec.RecordFromChannel(context.Background(), events, func() { entries++ }); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if entries != 3 || rec.Count() != 3 {
		t.Errorf("expected 3 entries, got callback=%d count=%d", entries, rec.Count())
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}

	n, err := NewReplayer(path, 0, false).CountEvents()
	if err != nil || n != 3 {
		t.Errorf("expected 3 events in file, got %d (%v)", n, err)
	}
}

func TestReplayer_ReplaysInOrder(t *testing.T) {
	path := writeRecording(t, sampleEvents())

	output := make(chan models.StreamEvent, 10)
	start := time.Now()
	if err := NewReplayer(path, 1, false).Replay(context.Background(), output); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	close(output)

	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("replay should keep the recorded spacing, took %v", elapsed)
	}

	var ids []string
	for e := range output {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "1,2,3" {
		t.Errorf("unexpected order: %v", ids)
	}
}

func TestReplayer_LoopStopsOnCancel(t *testing.T) {
	path := writeRecording(t, sampleEvents())

	ctx, cancel := context.WithCancel(context.Background())
	output := make(chan models.StreamEvent)
	done := make(chan error, 1)
	go func() { done <- NewReplayer(path, 0, true).Replay(ctx, output) }()

	// more than one pass proves looping
	for i := 0; i < 7; i++ {
		<-output
	}
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("replay did not stop")
	}
}

func TestReplayer_Metadata(t *testing.T) {
	path := writeRecording(t, sampleEvents())
	replayer := NewReplayer(path, 1, false)

	first, err := replayer.GetFirstEvent()
	if err != nil {
		t.Fatalf("failed to read first event: %v", err)
	}
	if first.Name != models.EventStatus {
		t.Errorf("expected status event first, got %q", first.Name)
	}

	empty := filepath.Join(t.TempDir(), "empty.ndjson")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReplayer(empty, 1, false).GetFirstEvent(); err == nil {
		t.Error("expected error for empty recording")
	}
}

func TestReplayer_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ndjson")
	if err := os.WriteFile(path, []byte("{\"event\":\"update\"}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	output := make(chan models.StreamEvent, 2)
	err := NewReplayer(path, 0, false).Replay(context.Background(), output)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected parse error at line 2, got %v", err)
	}
}
