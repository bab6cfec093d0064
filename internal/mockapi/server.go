// Package mockapi is a development backend that speaks the same HTTP and
// server-sent events contract as the building-energy service.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/energynexus/nexus-cli/internal/transport"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config holds the mock backend configuration
type Config struct {
	Host        string
	Port        int
	Secret      string
	TokenTTL    time.Duration
	Tick        time.Duration
	Burst       int
	Replay      string
	ReplaySpeed float64
	StreamRetry time.Duration
	Accounts    []Account
	// Dataset is queued at startup as if it had been ingested
	Dataset []models.Reading
}

// DefaultConfig returns settings for a local backend on port 8081
func DefaultConfig() Config {
	return Config{
		Host:        "127.0.0.1",
		Port:        8081,
		Secret:      "nexus-mock-secret",
		TokenTTL:    24 * time.Hour,
		Tick:        2 * time.Second,
		Burst:       24,
		ReplaySpeed: 1,
		StreamRetry: 3 * time.Second,
	}
}

// Server is the mock backend
type Server struct {
	config Config
	store  *store
	tokens *tokenService
	broker *transport.SSEBroker
	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}
	addr   string

	simMu   sync.Mutex
	simStop chan struct{}
	simDone chan struct{}
}

// NewServer creates a backend with its seeded accounts
func NewServer(config Config) (*Server, error) {
	if config.Tick <= 0 {
		return nil, fmt.Errorf("tick must be positive")
	}
	if config.Secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultConfig().TokenTTL
	}
	if len(config.Accounts) == 0 {
		config.Accounts = DefaultAccounts()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: config,
		store:  newStore(),
		tokens: newTokenService(config.Secret, config.TokenTTL),
		broker: transport.NewSSEBroker(config.StreamRetry),
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
	}
	for _, a := range config.Accounts {
		if _, err := s.store.addAccount(a); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to seed account %s: %w", a.Email, err)
		}
	}
	if len(config.Dataset) > 0 {
		s.store.loadQueue(config.Dataset)
	}
	return s, nil
}

// Handler returns the backend routes mounted under /api
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/auth/logout", s.handleLogout)
			r.Get("/full-report", s.handleFullReport)
			r.Get("/stats/weekly", s.handleWeekly)
			r.Get("/simulation/state", s.handleState)
			r.Method(http.MethodGet, "/stream", s.broker)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/simulation/start", s.handleStart)
				r.Post("/simulation/stop", s.handleStop)
				r.Delete("/admin/data/clear", s.handleClear)
				r.Post("/admin/ingest-dataset", s.handleIngest)
				r.Get("/admin/users", s.handleUsers)
				r.Post("/admin/users/change-role", s.handleChangeRole)
			})
		})
	})
	return r
}

// requestLogger logs each request at debug level once it completes
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Host, s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.addr = ln.Addr().String()
	close(s.ready)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Ready is closed once Start has bound its listener
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Shutdown stops the simulation, drops stream clients and stops the server
func (s *Server) Shutdown() error {
	s.stopSimulation()
	s.cancel()
	s.broker.Close()
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the API base URL
func (s *Server) GetAddress() string {
	addr := s.addr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	}
	return "http://" + addr + "/api"
}
