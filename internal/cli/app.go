package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/energynexus/nexus-cli/internal/api"
	"github.com/energynexus/nexus-cli/internal/live"
	"github.com/energynexus/nexus-cli/internal/monitor"
	"github.com/energynexus/nexus-cli/internal/session"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in; run 'nexus login' first")

// app bundles the client and the session store a command works with
type app struct {
	client *api.Client
	store  *session.Store
}

func newApp() *app {
	cfg := globalOpts.Config
	client := api.NewClient(api.Config{
		BaseURL:            cfg.API.URL,
		Timeout:            cfg.API.Timeout,
		StreamTokenInQuery: cfg.API.StreamTokenInQuery,
		UserAgent:          "nexus-cli/" + Version,
	})
	store := session.NewStore(client, session.Options{
		Path:        cfg.Session.File,
		FallbackTTL: cfg.Session.FallbackTTL,
	})
	client.SetCredentials(store)
	store.Restore()
	return &app{client: client, store: store}
}

// requireSession fails unless a persisted session was restored
func (a *app) requireSession() (*session.Session, error) {
	sess := a.store.Current()
	if sess == nil {
		return nil, errNotLoggedIn
	}
	return sess, nil
}

func (a *app) newMonitor() *monitor.Monitor {
	cfg := globalOpts.Config
	return monitor.New(a.client, a.store, monitor.Options{
		BufferSize:     cfg.Live.BufferSize,
		WeeklyInterval: cfg.Live.WeeklyInterval,
		Reconnect:      reconnectOptions(),
	})
}

func reconnectOptions() live.Options {
	cfg := globalOpts.Config
	return live.Options{
		InitialInterval: cfg.Live.ReconnectInitial,
		MaxInterval:     cfg.Live.ReconnectMax,
		MaxRetries:      cfg.Live.ReconnectRetries,
	}
}

func (a *app) close() {
	a.store.Close()
}

// sessionError explains a failure caused by the session ending mid-command
func (a *app) sessionError(err error) error {
	if err == nil {
		return nil
	}
	if a.store.Current() == nil && (api.IsKind(err, api.KindAuthentication) || errors.Is(err, api.ErrNotAuthenticated)) {
		return fmt.Errorf("%w; log in again with 'nexus login'", err)
	}
	return err
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
