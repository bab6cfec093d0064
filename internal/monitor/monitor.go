package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/energynexus/nexus-cli/internal/live"
	"github.com/energynexus/nexus-cli/internal/models"
)

// ErrStreaming is returned for commands the backend must not run while the
// simulation is streaming.
var ErrStreaming = errors.New("simulation is streaming; stop it first")

// ErrClosed is returned after Close
var ErrClosed = errors.New("monitor closed")

// Client is the slice of the API the monitor drives
type Client interface {
	FullReport(ctx context.Context) (*models.SystemReport, error)
	WeeklyStats(ctx context.Context) ([]models.WeeklyStat, error)
	SimulationState(ctx context.Context) (models.SystemStatus, error)
	StartSimulation(ctx context.Context) (string, error)
	StopSimulation(ctx context.Context) (string, error)
	ClearData(ctx context.Context) (string, error)
	IngestDataset(ctx context.Context, name string, r io.Reader) (string, error)
	OpenStream(ctx context.Context) (io.ReadCloser, error)
}

// Session notifies the monitor when the active session ends
type Session interface {
	OnTeardown(fn func(reason error)) func()
}

// Options configures a Monitor
type Options struct {
	BufferSize     int
	WeeklyInterval time.Duration
	Reconnect      live.Options
	// OnEvent receives every raw stream event, e.g. for recording
	OnEvent func(models.StreamEvent)
	// OnGiveUp is called once reconnect attempts are exhausted
	OnGiveUp func(err error)
}

const (
	DefaultWeeklyInterval = 10 * time.Second
	MinWeeklyInterval     = 3 * time.Second
	frameBuffer           = 256
)

// Snapshot is a consistent copy of the monitor state
type Snapshot struct {
	Stats     models.Stats
	Insight   models.AIInsight
	Readings  []models.Reading
	Weekly    []models.WeeklyStat
	Status    models.SystemStatus
	Live      bool
	LastError error
	// StreamError is why the live stream stopped; fetches do not clear it
	StreamError error
	UpdatedAt   time.Time
}

// Monitor merges the full report, the live stream and the weekly poll into
// one state. All mutation happens under mu. API calls are never made while
// holding it, since a rejected call tears the session down synchronously and
// the teardown hook takes mu.
type Monitor struct {
	client Client
	opts   Options

	mu sync.Mutex
	// gen changes on every session teardown; work started under an older
	// generation is discarded
	gen           uint64
	nextTicket    uint64
	appliedReport uint64
	appliedWeekly uint64
	appliedStatus uint64

	stats     models.Stats
	insight   models.AIInsight
	buffer    *live.Buffer
	weekly    []models.WeeklyStat
	status    models.SystemStatus
	lastErr   error
	streamErr error
	updatedAt time.Time

	sub    *live.Subscriber
	liveOn bool

	frames  chan models.LiveFrame
	seq     int64
	dropped int64
	closed  bool

	unregister func()
}

// New creates a monitor bound to a session
func New(client Client, session Session, opts Options) *Monitor {
	if opts.BufferSize <= 0 {
		opts.BufferSize = live.DefaultBufferSize
	}
	if opts.WeeklyInterval <= 0 {
		opts.WeeklyInterval = DefaultWeeklyInterval
	}
	if opts.WeeklyInterval < MinWeeklyInterval {
		opts.WeeklyInterval = MinWeeklyInterval
	}
	m := &Monitor{
		client: client,
		opts:   opts,
		buffer: live.NewBuffer(opts.BufferSize),
		frames: make(chan models.LiveFrame, frameBuffer),
	}
	if session != nil {
		m.unregister = session.OnTeardown(m.teardown)
	}
	return m
}

// Frames delivers a frame for every applied change. It is closed by Close.
func (m *Monitor) Frames() <-chan models.LiveFrame {
	return m.frames
}

// Mount loads the initial state: report, weekly stats and status
func (m *Monitor) Mount(ctx context.Context) error {
	_, errReport := m.FetchReport(ctx)
	_, errWeekly := m.FetchWeekly(ctx)
	errStatus := m.SyncStatus(ctx)
	return errors.Join(errReport, errWeekly, errStatus)
}

// begin takes a ticket for a fetch under the current generation
func (m *Monitor) begin() (gen, ticket uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, 0, ErrClosed
	}
	m.nextTicket++
	return m.gen, m.nextTicket, nil
}

// accept reports whether a response for (gen, ticket) may still be applied.
// Callers hold mu.
func (m *Monitor) accept(gen, ticket uint64, applied *uint64) bool {
	if m.closed || gen != m.gen || ticket <= *applied {
		return false
	}
	*applied = ticket
	return true
}

func (m *Monitor) fail(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen && !errors.Is(err, context.Canceled) {
		m.lastErr = err
	}
}

// FetchReport fetches the full report and replaces local state with it. The
// live buffer is reseeded from the report's recent readings. A response that
// was overtaken by a newer fetch, or that arrives after teardown, is dropped.
func (m *Monitor) FetchReport(ctx context.Context) (*models.SystemReport, error) {
	gen, ticket, err := m.begin()
	if err != nil {
		return nil, err
	}
	report, err := m.client.FullReport(ctx)
	if err != nil {
		slog.Warn("report fetch failed", "error", err)
		m.fail(gen, err)
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.accept(gen, ticket, &m.appliedReport) {
		slog.Debug("dropping superseded report", "ticket", ticket)
		return report, nil
	}
	m.stats = report.Stats
	m.insight = report.AIInsights
	m.buffer.Seed(report.RecentReadings)
	m.lastErr = nil
	m.touch()

	frame := m.frame(models.FrameStats)
	stats, insight := m.stats, m.insight
	frame.Stats, frame.Insight = &stats, &insight
	m.emit(frame)
	return report, nil
}

// FetchWeekly fetches weekly aggregates
func (m *Monitor) FetchWeekly(ctx context.Context) ([]models.WeeklyStat, error) {
	gen, ticket, err := m.begin()
	if err != nil {
		return nil, err
	}
	weekly, err := m.client.WeeklyStats(ctx)
	if err != nil {
		slog.Warn("weekly stats fetch failed", "error", err)
		m.fail(gen, err)
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accept(gen, ticket, &m.appliedWeekly) {
		m.weekly = weekly
		m.lastErr = nil
		m.touch()
	}
	return weekly, nil
}

// SyncStatus re-reads the authoritative status from the backend
func (m *Monitor) SyncStatus(ctx context.Context) error {
	gen, ticket, err := m.begin()
	if err != nil {
		return err
	}
	status, err := m.client.SimulationState(ctx)
	if err != nil {
		slog.Warn("status fetch failed", "error", err)
		m.fail(gen, err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accept(gen, ticket, &m.appliedStatus) {
		m.setStatus(status)
	}
	return nil
}

// setStatus records a status change. Callers hold mu.
func (m *Monitor) setStatus(status models.SystemStatus) {
	if m.status == status {
		return
	}
	m.status = status
	m.touch()
	frame := m.frame(models.FrameStatus)
	frame.Status = status
	m.emit(frame)
}

// StartLive opens the stream, replacing any open connection
func (m *Monitor) StartLive(ctx context.Context) error {
	m.StopLive()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	gen := m.gen
	m.sub = live.NewSubscriber(m.client, live.Handlers{
		OnUpdate: func(u *models.ReportUpdate) { m.applyUpdate(gen, u) },
		OnStatus: func(s models.SystemStatus) { m.applyStatus(gen, s) },
		OnEvent: func(ev models.StreamEvent) {
			if m.current(gen) && m.opts.OnEvent != nil {
				m.opts.OnEvent(ev)
			}
		},
		OnGiveUp: func(err error) { m.giveUp(gen, err) },
	}, m.opts.Reconnect)
	m.liveOn = true
	m.streamErr = nil
	m.sub.Start(ctx)
	return nil
}

// StopLive closes the stream and waits for its goroutine
func (m *Monitor) StopLive() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.liveOn = false
	m.mu.Unlock()

	if sub != nil {
		sub.Stop()
	}
}

func (m *Monitor) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && m.liveOn && gen == m.gen
}

func (m *Monitor) applyUpdate(gen uint64, u *models.ReportUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.liveOn || gen != m.gen {
		return
	}
	m.stats = u.Stats
	m.insight = u.AIInsights
	m.touch()

	frame := m.frame(models.FrameStats)
	stats, insight := m.stats, m.insight
	frame.Stats, frame.Insight = &stats, &insight
	m.emit(frame)

	if u.Newest != nil && m.buffer.Push(*u.Newest) {
		frame := m.frame(models.FrameReading)
		r := *u.Newest
		frame.Reading = &r
		m.emit(frame)
	}
}

func (m *Monitor) applyStatus(gen uint64, status models.SystemStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.liveOn || gen != m.gen {
		return
	}
	m.setStatus(status)
}

func (m *Monitor) giveUp(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.liveOn = false
	m.streamErr = err
	m.touch()
	m.mu.Unlock()

	if m.opts.OnGiveUp != nil {
		m.opts.OnGiveUp(err)
	}
}

// teardown runs when the session ends. It may run on the subscriber's own
// goroutine, so it cancels the stream without waiting for it.
func (m *Monitor) teardown(reason error) {
	m.mu.Lock()
	m.gen++
	m.stats = models.Stats{}
	m.insight = models.AIInsight{}
	m.buffer.Reset()
	m.weekly = nil
	m.status = ""
	m.lastErr = nil
	m.streamErr = nil
	m.liveOn = false
	sub := m.sub
	m.mu.Unlock()

	slog.Debug("monitor state cleared", "reason", reason)
	if sub != nil {
		sub.Cancel()
	}
}

// Run polls weekly stats until ctx is done. Failed polls keep the last good
// data and are retried on the next tick.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.WeeklyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.FetchWeekly(ctx); errors.Is(err, ErrClosed) {
				return err
			}
		}
	}
}

// Snapshot returns a copy of the current state
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	weekly := make([]models.WeeklyStat, len(m.weekly))
	copy(weekly, m.weekly)
	return Snapshot{
		Stats:       m.stats,
		Insight:     m.insight,
		Readings:    m.buffer.Readings(),
		Weekly:      weekly,
		Status:      m.status,
		Live:        m.liveOn,
		LastError:   m.lastErr,
		StreamError: m.streamErr,
		UpdatedAt:   m.updatedAt,
	}
}

// LastError returns the most recent non-fatal failure, nil after a success
func (m *Monitor) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// StreamError returns why the live stream gave up, nil while it is healthy
func (m *Monitor) StreamError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamErr
}

// Dropped returns how many frames were discarded because no one read them
func (m *Monitor) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Close stops the stream, detaches from the session and closes Frames
func (m *Monitor) Close() error {
	m.StopLive()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.frames)
	if m.unregister != nil {
		m.unregister()
	}
	return nil
}

func (m *Monitor) touch() {
	m.updatedAt = time.Now()
}

func (m *Monitor) frame(kind models.FrameKind) models.LiveFrame {
	m.seq++
	return models.NewLiveFrame(m.seq, kind)
}

// emit never blocks; callers hold mu
func (m *Monitor) emit(frame models.LiveFrame) {
	if m.closed {
		return
	}
	select {
	case m.frames <- frame:
	default:
		m.dropped++
	}
}
