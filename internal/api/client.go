package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxBodyBytes = 16 << 20

// Credentials supplies the bearer token for authenticated calls and is told
// when the backend rejects it.
type Credentials interface {
	Token() string
	Invalidate(token string, reason error)
}

// Config holds the API client configuration
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	StreamTokenInQuery bool
	UserAgent          string
}

// Client talks to the telemetry backend
type Client struct {
	config     Config
	httpClient *http.Client
	// streamClient has no overall timeout; stream lifetime is bounded by ctx
	streamClient *http.Client

	mu    sync.RWMutex
	creds Credentials
}

// NewClient creates a new API client
func NewClient(config Config) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "nexus-cli"
	}
	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
	}
}

// SetCredentials installs the token source used for authenticated calls
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

// BaseURL returns the configured backend URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

func (c *Client) credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("User-Agent", c.config.UserAgent)
	return req, nil
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// send performs req and reads the whole body. Transport failures come back as
// KindNetwork errors.
func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, []byte, error) {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("%s %s failed", req.Method, req.URL.Path), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}
	slog.Debug("api request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
		"duration", time.Since(start))
	return resp, body, nil
}

// authorize attaches the current token, or fails with ErrNotAuthenticated
// before any I/O happens.
func (c *Client) authorize(req *http.Request) (Credentials, string, error) {
	creds := c.credentials()
	if creds == nil {
		return nil, "", ErrNotAuthenticated
	}
	token := creds.Token()
	if token == "" {
		return nil, "", ErrNotAuthenticated
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return creds, token, nil
}

// rejected tears the session down after the backend refused its credential
func rejected(creds Credentials, token string, status int, body []byte) error {
	_, message := parseErrorBody(body)
	if message == "" {
		message = "session is no longer valid"
	}
	err := &Error{Kind: KindAuthentication, Status: status, Code: CodeSessionInvalid, Message: message}
	creds.Invalidate(token, err)
	return err
}

func statusError(status int, body []byte) error {
	code, message := parseErrorBody(body)
	if message == "" {
		message = http.StatusText(status)
	}
	kind := KindServer
	if status >= 400 && status < 500 {
		kind = KindValidation
	}
	return &Error{Kind: kind, Status: status, Code: code, Message: message}
}

func isRejection(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// authed performs an authenticated call and returns the body of a 2xx response
func (c *Client) authed(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	creds, token, err := c.authorize(req)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, data, err := c.send(c.httpClient, req)
	if err != nil {
		return nil, err
	}
	if isRejection(resp.StatusCode) {
		return nil, rejected(creds, token, resp.StatusCode, data)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, data)
	}
	return data, nil
}

func (c *Client) authedJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if payload == nil {
		return c.authed(ctx, method, path, "", nil)
	}
	body, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}
	return c.authed(ctx, method, path, "application/json", body)
}

func malformed(what string, err error) error {
	return &Error{Kind: KindServer, Message: "malformed " + what, Err: err}
}

// Ping checks that the backend answers at all
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}
	resp, body, err := c.send(c.httpClient, req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, body)
	}
	return nil
}

// IsRetryable reports whether err is worth another attempt later
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.Kind {
	case KindNetwork, KindServer:
		return true
	}
	return false
}
