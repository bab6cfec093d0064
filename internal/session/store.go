package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/energynexus/nexus-cli/internal/api"
	"github.com/energynexus/nexus-cli/internal/models"
)

var (
	// ErrLoggedOut is the teardown reason for an explicit logout
	ErrLoggedOut = errors.New("logged out")
	// ErrExpired is the teardown reason when the credential outlives its expiry
	ErrExpired = errors.New("session expired")
	// ErrDisposed is returned once the store has been closed
	ErrDisposed = errors.New("session store closed")
)

// Authenticator performs the backend side of login, registration and logout
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
	Register(ctx context.Context, reg models.Registration) error
	Logout(ctx context.Context, token string) error
}

// Options configures a Store
type Options struct {
	// Path of the persisted session file; empty disables persistence
	Path string
	// FallbackTTL applies when the token carries no exp claim
	FallbackTTL time.Duration
	Now         func() time.Time
}

// Store owns the current session. It implements api.Credentials.
//
// Teardown hooks run synchronously on the goroutine that triggered the
// teardown, so callers of Token, Invalidate and Logout must not hold locks
// that hooks acquire.
type Store struct {
	auth Authenticator
	file *fileStore
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	state    State
	current  *Session
	hooks    map[int]func(reason error)
	nextHook int
}

// NewStore creates a store in the Init state
func NewStore(auth Authenticator, opts Options) *Store {
	if opts.FallbackTTL <= 0 {
		opts.FallbackTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var file *fileStore
	if opts.Path != "" {
		file = &fileStore{path: opts.Path}
	}
	return &Store{
		auth:  auth,
		file:  file,
		ttl:   opts.FallbackTTL,
		now:   opts.Now,
		state: StateInit,
		hooks: make(map[int]func(reason error)),
	}
}

// Restore loads a persisted session. It is meant to run once at startup and
// returns nil for missing, corrupt or expired data.
func (s *Store) Restore() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInit {
		return s.copyCurrent()
	}
	s.state = StateUnauthenticated
	if s.file == nil {
		return nil
	}

	sess, err := s.file.load()
	if err != nil {
		slog.Warn("discarding unreadable session", "path", s.file.path, "error", err)
		s.file.remove()
		return nil
	}
	if sess == nil {
		return nil
	}
	if !sess.valid(s.now()) {
		slog.Info("discarding stale session", "path", s.file.path)
		s.file.remove()
		return nil
	}

	s.current = sess
	s.state = StateAuthenticated
	return s.copyCurrent()
}

// Login authenticates against the backend and installs the new session.
// Any session already held is torn down first.
func (s *Store) Login(ctx context.Context, email, password string) (*Session, error) {
	if s.State() == StateDisposed {
		return nil, ErrDisposed
	}

	result, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiry, ok := tokenExpiry(result.Token)
	if !ok {
		expiry = now.Add(s.ttl)
	}
	sess := &Session{
		Identity: models.User{
			ID:       result.ID,
			Username: result.Username,
			Email:    email,
			Role:     result.Role,
		},
		Token:  result.Token,
		Expiry: expiry,
	}
	if sess.Expired(now) {
		return nil, &api.Error{Kind: api.KindAuthentication, Code: api.CodeSessionInvalid, Message: "backend issued an expired token"}
	}

	if prev := s.Current(); prev != nil {
		s.Invalidate(prev.Token, ErrLoggedOut)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return nil, ErrDisposed
	}
	s.current = sess
	s.state = StateAuthenticated
	if s.file != nil {
		if err := s.file.save(sess); err != nil {
			slog.Warn("session will not survive restart", "error", err)
		}
	}
	slog.Info("logged in", "email", email, "role", sess.Identity.Role, "expires", sess.Expiry)
	return s.copyCurrent(), nil
}

// Register creates an account without touching session state
func (s *Store) Register(ctx context.Context, reg models.Registration) error {
	if s.State() == StateDisposed {
		return ErrDisposed
	}
	return s.auth.Register(ctx, reg)
}

// Logout clears local state and then tells the backend. Backend failures are
// logged, never returned: the local session is gone either way.
func (s *Store) Logout(ctx context.Context) error {
	sess := s.Current()
	if sess == nil {
		return nil
	}
	s.Invalidate(sess.Token, ErrLoggedOut)

	if err := s.auth.Logout(ctx, sess.Token); err != nil {
		slog.Warn("backend logout failed", "error", err)
	}
	return nil
}

// Token returns the active credential, or "" when unauthenticated. An
// expired session is torn down on access.
func (s *Store) Token() string {
	s.mu.Lock()
	if s.state != StateAuthenticated || s.current == nil {
		s.mu.Unlock()
		return ""
	}
	if s.current.Expired(s.now()) {
		token := s.current.Token
		s.mu.Unlock()
		s.Invalidate(token, ErrExpired)
		return ""
	}
	token := s.current.Token
	s.mu.Unlock()
	return token
}

// Invalidate tears down the session owning token. It acts at most once per
// session; stale or repeated calls are no-ops.
func (s *Store) Invalidate(token string, reason error) {
	s.mu.Lock()
	if s.state != StateAuthenticated || s.current == nil || s.current.Token != token {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.state = StateUnauthenticated
	if s.file != nil {
		s.file.remove()
	}
	hooks := s.snapshotHooks()
	s.mu.Unlock()

	slog.Info("session ended", "reason", reason)
	for _, fn := range hooks {
		fn(reason)
	}
}

// OnTeardown registers fn to run whenever the active session ends. The
// returned function unregisters it.
func (s *Store) OnTeardown(fn func(reason error)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextHook
	s.nextHook++
	s.hooks[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.hooks, id)
	}
}

// Current returns a copy of the active session, or nil
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyCurrent()
}

// State returns the lifecycle state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close disposes the store. Hooks run for an active session but the persisted
// file stays, so the next process can restore it.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return nil
	}
	active := s.state == StateAuthenticated
	s.state = StateDisposed
	s.current = nil
	hooks := s.snapshotHooks()
	s.hooks = make(map[int]func(reason error))
	s.mu.Unlock()

	if active {
		for _, fn := range hooks {
			fn(ErrDisposed)
		}
	}
	return nil
}

// RequireAdmin returns the active session if it belongs to an administrator
func (s *Store) RequireAdmin() (*Session, error) {
	sess := s.Current()
	if sess == nil {
		return nil, api.ErrNotAuthenticated
	}
	if !sess.Identity.IsAdmin() {
		return nil, fmt.Errorf("%s is not an administrator", sess.Identity.Email)
	}
	return sess, nil
}

func (s *Store) copyCurrent() *Session {
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

func (s *Store) snapshotHooks() []func(reason error) {
	ids := make([]int, 0, len(s.hooks))
	for id := range s.hooks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(reason error), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.hooks[id])
	}
	return out
}
