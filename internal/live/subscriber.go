package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/energynexus/nexus-cli/internal/api"
	"github.com/energynexus/nexus-cli/internal/models"
)

// ErrStreamClosed is reported when the backend ends the stream
var ErrStreamClosed = errors.New("stream closed by server")

// Opener opens the raw server-push stream
type Opener interface {
	OpenStream(ctx context.Context) (io.ReadCloser, error)
}

// Handlers receive stream activity. Every field is optional. They are called
// from the subscriber's goroutine, one at a time.
type Handlers struct {
	OnUpdate     func(update *models.ReportUpdate)
	OnStatus     func(status models.SystemStatus)
	OnEvent      func(event models.StreamEvent)
	OnConnect    func()
	OnDisconnect func(err error)
	// OnGiveUp is called once when reconnect attempts are exhausted
	OnGiveUp func(err error)
}

// Options tunes reconnection
type Options struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
}

// DefaultOptions returns the reconnect policy used when none is configured
func DefaultOptions() Options {
	return Options{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		MaxRetries:      5,
	}
}

// Subscriber keeps a single stream connection open and reconnects with
// exponential backoff until it is stopped or gives up.
type Subscriber struct {
	opener   Opener
	handlers Handlers
	opts     Options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates a subscriber; nothing is opened until Start
func NewSubscriber(opener Opener, handlers Handlers, opts Options) *Subscriber {
	def := DefaultOptions()
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = def.InitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = def.MaxInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	return &Subscriber{opener: opener, handlers: handlers, opts: opts}
}

// Start opens the stream, closing any connection opened by an earlier Start
func (s *Subscriber) Start(ctx context.Context) {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.run(runCtx, done)
}

// Stop closes the connection and waits for the subscriber goroutine to exit.
// It must not be called from a handler; use Cancel there.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Cancel closes the connection without waiting
func (s *Subscriber) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Running reports whether a connection loop is active
func (s *Subscriber) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (s *Subscriber) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.InitialInterval
	exp.MaxInterval = s.opts.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.opts.MaxRetries)), ctx)
}

func (s *Subscriber) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	bo := s.newBackOff(ctx)
	for {
		received, retry, err := s.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if s.handlers.OnDisconnect != nil {
			s.handlers.OnDisconnect(err)
		}
		if !api.IsRetryable(err) {
			slog.Warn("stream stopped", "error", err)
			return
		}
		if received {
			bo.Reset()
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			if ctx.Err() != nil {
				return
			}
			slog.Error("stream reconnect attempts exhausted", "error", err)
			if s.handlers.OnGiveUp != nil {
				s.handlers.OnGiveUp(err)
			}
			return
		}
		if retry > wait {
			wait = retry
		}
		slog.Info("stream reconnecting", "in", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connect holds one connection until it fails. It reports whether any event
// arrived and the server's requested retry delay.
func (s *Subscriber) connect(ctx context.Context) (bool, time.Duration, error) {
	body, err := s.opener.OpenStream(ctx)
	if err != nil {
		return false, 0, err
	}
	defer body.Close()

	if s.handlers.OnConnect != nil {
		s.handlers.OnConnect()
	}
	slog.Debug("stream connected")

	dec := NewDecoder(body)
	received := false
	for {
		event, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrStreamClosed
			} else {
				err = &api.Error{Kind: api.KindNetwork, Message: "stream read failed", Err: err}
			}
			return received, dec.Retry(), err
		}
		if ctx.Err() != nil {
			return received, 0, ctx.Err()
		}
		received = true
		s.dispatch(event)
	}
}

func (s *Subscriber) dispatch(event models.StreamEvent) {
	if s.handlers.OnEvent != nil {
		s.handlers.OnEvent(event)
	}

	switch event.Name {
	case models.EventUpdate:
		update, err := api.DecodeUpdate([]byte(event.Data))
		if err != nil {
			slog.Warn("skipping malformed update event", "id", event.ID, "error", err)
			return
		}
		if s.handlers.OnUpdate != nil {
			s.handlers.OnUpdate(update)
		}
	case models.EventStatus:
		status, err := models.ParseSystemStatus(event.Data)
		if err != nil {
			slog.Debug("ignoring unknown status", "data", event.Data)
			return
		}
		if s.handlers.OnStatus != nil {
			s.handlers.OnStatus(status)
		}
	default:
		slog.Debug("ignoring stream event", "event", event.Name)
	}
}
