package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/energynexus/nexus-cli/internal/models"
)

// Administrative commands are sent as-is; the status and report are then
// re-read from the backend rather than updated optimistically.

// StartSimulation starts the backend simulation. It is refused while
// already streaming.
func (m *Monitor) StartSimulation(ctx context.Context) (string, error) {
	if err := m.requireNotStreaming(ctx); err != nil {
		return "", err
	}
	msg, err := m.client.StartSimulation(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to start simulation: %w", err)
	}
	return msg, m.resync(ctx)
}

// StopSimulation stops the backend simulation
func (m *Monitor) StopSimulation(ctx context.Context) (string, error) {
	msg, err := m.client.StopSimulation(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to stop simulation: %w", err)
	}
	return msg, m.resync(ctx)
}

// Purge deletes every stored reading. It is refused while streaming.
func (m *Monitor) Purge(ctx context.Context) (string, error) {
	if err := m.requireNotStreaming(ctx); err != nil {
		return "", err
	}
	msg, err := m.client.ClearData(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to clear data: %w", err)
	}
	return msg, m.resync(ctx)
}

// Upload ingests a CSV dataset. It is refused while streaming.
func (m *Monitor) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := m.requireNotStreaming(ctx); err != nil {
		return "", err
	}
	msg, err := m.client.IngestDataset(ctx, name, r)
	if err != nil {
		return "", fmt.Errorf("failed to upload dataset: %w", err)
	}
	return msg, m.resync(ctx)
}

func (m *Monitor) requireNotStreaming(ctx context.Context) error {
	if err := m.SyncStatus(ctx); err != nil {
		return fmt.Errorf("failed to read simulation status: %w", err)
	}
	if m.Snapshot().Status == models.StatusStreaming {
		return ErrStreaming
	}
	return nil
}

func (m *Monitor) resync(ctx context.Context) error {
	errStatus := m.SyncStatus(ctx)
	_, errReport := m.FetchReport(ctx)
	if err := errors.Join(errStatus, errReport); err != nil {
		return fmt.Errorf("command sent but re-sync failed: %w", err)
	}
	return nil
}
