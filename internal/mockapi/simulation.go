package mockapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/energynexus/nexus-cli/internal/api"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/energynexus/nexus-cli/internal/recorder"
)

// CSVHeader is the dataset column order the ingest endpoint expects
var CSVHeader = []string{
	"Timestamp", "Temperature", "Humidity", "SquareFootage", "Occupancy",
	"HVACUsage", "LightingUsage", "RenewableEnergy", "DayOfWeek", "Holiday",
	"EnergyConsumption",
}

const csvTimestamp = "2006-01-02 15:04:05"

var (
	errNoDataset      = errors.New("no dataset queued; upload one first")
	errAlreadyRunning = errors.New("simulation already running")
)

// parseDataset reads a dataset CSV. A header row is skipped when present and
// rows with a leading ID column, as written by export, are accepted.
func parseDataset(r io.Reader) ([]models.Reading, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var readings []models.Reading
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
		}
		if len(record) == len(CSVHeader)+1 {
			record = record[1:]
		}
		if len(record) != len(CSVHeader) {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, len(CSVHeader), len(record))
		}
		if line == 1 && strings.EqualFold(record[0], CSVHeader[0]) {
			continue
		}
		reading, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

func parseRecord(record []string) (models.Reading, error) {
	var (
		r    models.Reading
		errs []error
	)
	float := func(field, s string) float64 {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a number", field, s))
		}
		return v
	}

	ts, err := time.Parse(csvTimestamp, strings.TrimSpace(record[0]))
	if err != nil {
		errs = append(errs, fmt.Errorf("timestamp: %q does not match %s", record[0], csvTimestamp))
	}
	r.Timestamp = ts
	r.Temperature = float("temperature", record[1])
	r.Humidity = float("humidity", record[2])
	r.SquareFootage = float("squareFootage", record[3])
	occupancy, err := strconv.Atoi(strings.TrimSpace(record[4]))
	if err != nil {
		errs = append(errs, fmt.Errorf("occupancy: %q is not an integer", record[4]))
	}
	r.Occupancy = occupancy
	r.HVACOn = strings.EqualFold(strings.TrimSpace(record[5]), "on")
	r.LightingOn = strings.EqualFold(strings.TrimSpace(record[6]), "on")
	r.RenewableEnergy = float("renewableEnergy", record[7])
	r.DayOfWeek = strings.TrimSpace(record[8])
	r.Holiday = strings.EqualFold(strings.TrimSpace(record[9]), "yes")
	r.EnergyConsumption = float("energyConsumption", record[10])

	return r, errors.Join(errs...)
}

// ingest replaces the simulation queue with a parsed dataset
func (s *Server) ingest(r io.Reader) (int, error) {
	s.setStatus(models.StatusProcessing)
	readings, err := parseDataset(r)
	if err != nil {
		s.setStatus(models.StatusError)
		return 0, err
	}
	s.store.loadQueue(readings)
	s.setStatus(models.StatusIdle)
	slog.Info("dataset queued", "records", len(readings))
	return len(readings), nil
}

// startSimulation begins streaming the queue, or the replay file when configured
func (s *Server) startSimulation() error {
	s.simMu.Lock()
	defer s.simMu.Unlock()

	if s.simStop != nil {
		return errAlreadyRunning
	}
	if s.config.Replay == "" && s.store.queued() == 0 {
		return errNoDataset
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.simStop, s.simDone = stop, done
	s.setStatus(models.StatusStreaming)

	ctx, cancel := context.WithCancel(s.ctx)
	go func() {
		<-stop
		cancel()
	}()
	go func() {
		defer close(done)
		defer cancel()
		var err error
		if s.config.Replay != "" {
			err = s.replay(ctx)
		} else {
			err = s.simulate(ctx)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("simulation failed", "error", err)
		}
		s.finishSimulation(stop)
	}()
	slog.Info("simulation started", "queued", s.store.queued(), "replay", s.config.Replay)
	return nil
}

// stopSimulation halts a running simulation and waits for it to finish
func (s *Server) stopSimulation() bool {
	s.simMu.Lock()
	stop, done := s.simStop, s.simDone
	s.simMu.Unlock()

	if stop == nil {
		return false
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done
	return true
}

func (s *Server) finishSimulation(stop chan struct{}) {
	s.simMu.Lock()
	if s.simStop == stop {
		s.simStop, s.simDone = nil, nil
	}
	s.simMu.Unlock()

	if s.store.getStatus() == models.StatusStreaming {
		s.setStatus(models.StatusIdle)
	}
	slog.Info("simulation stopped")
}

// simulate emits an initial burst, then one reading per tick until the
// queue drains.
func (s *Server) simulate(ctx context.Context) error {
	for i := 0; i < s.config.Burst; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !s.step() {
			return nil
		}
	}

	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.step() {
				return nil
			}
		}
	}
}

func (s *Server) step() bool {
	if _, ok := s.store.next(time.Now()); !ok {
		return false
	}
	s.publishReport()
	return true
}

// replay re-broadcasts a recorded stream. Recorded readings are added to
// the store so reports stay consistent with what was streamed.
func (s *Server) replay(ctx context.Context) error {
	replayer := recorder.NewReplayer(s.config.Replay, s.config.ReplaySpeed, false)
	events := make(chan models.StreamEvent)
	errCh := make(chan error, 1)
	go func() {
		errCh <- replayer.Replay(ctx, events)
		close(events)
	}()

	for event := range events {
		if event.Name != models.EventUpdate {
			// status is owned by the engine
			continue
		}
		update, err := api.DecodeUpdate([]byte(event.Data))
		if err != nil {
			slog.Warn("skipping unreadable recorded update", "id", event.ID, "error", err)
			continue
		}
		if update.Newest != nil {
			s.store.add(*update.Newest)
		}
		s.publishReport()
	}
	return <-errCh
}

func (s *Server) publishReport() {
	data, err := json.Marshal(s.store.report())
	if err != nil {
		slog.Error("failed to marshal report", "error", err)
		return
	}
	s.broker.Publish(models.EventUpdate, data)
}

// setStatus records the status and tells stream clients when it changed
func (s *Server) setStatus(status models.SystemStatus) {
	if !s.store.setStatus(status) {
		return
	}
	s.broker.Publish(models.EventStatus, []byte(status))
}
