package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// sseMessage is one named event queued for a client
type sseMessage struct {
	id   int64
	name string
	data []byte
}

// SSEBroker fans named events out to Server-Sent Events clients.
// It is an http.Handler so it can be mounted behind auth middleware.
type SSEBroker struct {
	retry   time.Duration
	clients map[chan sseMessage]struct{}
	mu      sync.RWMutex
	closed  bool
	lastID  atomic.Int64
}

// NewSSEBroker creates a broker; retry is advertised to clients when positive
func NewSSEBroker(retry time.Duration) *SSEBroker {
	return &SSEBroker{
		retry:   retry,
		clients: make(map[chan sseMessage]struct{}),
	}
}

func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	clientChan := make(chan sseMessage, 100)
	if !b.addClient(clientChan) {
		http.Error(w, "stream closed", http.StatusServiceUnavailable)
		return
	}
	defer b.removeClient(clientChan)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if b.retry > 0 {
		fmt.Fprintf(w, "retry: %d\n\n", b.retry.Milliseconds())
	} else {
		fmt.Fprint(w, ": connected\n\n")
	}
	flusher.Flush()

	slog.Debug("SSE client connected", "remote", r.RemoteAddr, "clients", b.ClientCount())

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-clientChan:
			if !ok {
				return
			}
			writeEvent(w, msg)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg sseMessage) {
	fmt.Fprintf(w, "id: %d\n", msg.id)
	fmt.Fprintf(w, "event: %s\n", msg.name)
	for _, line := range strings.Split(string(msg.data), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func (b *SSEBroker) addClient(ch chan sseMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.clients[ch] = struct{}{}
	return true
}

func (b *SSEBroker) removeClient(ch chan sseMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.clients[ch]; exists {
		delete(b.clients, ch)
		close(ch)
		slog.Debug("SSE client disconnected", "clients", len(b.clients))
	}
}

// Publish sends a named event to every connected client and returns how many
// clients it was queued for. Clients with a full queue miss the event.
func (b *SSEBroker) Publish(name string, data []byte) int {
	msg := sseMessage{id: b.lastID.Add(1), name: name, data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for ch := range b.clients {
		select {
		case ch <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

// ClientCount returns connected client count
func (b *SSEBroker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Disconnect drops every connected client; new clients are still accepted
func (b *SSEBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		close(ch)
	}
	b.clients = make(map[chan sseMessage]struct{})
}

// Close drops every client and refuses new ones
func (b *SSEBroker) Close() {
	b.Disconnect()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
