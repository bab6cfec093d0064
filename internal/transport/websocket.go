package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/energynexus/nexus-cli/internal/encoding"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local relay
	},
}

// WebSocketServer relays live frames to WebSocket clients
type WebSocketServer struct {
	host    string
	port    int
	encoder encoding.Encoder
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	server  *http.Server
	ready   chan struct{}
	addr    string
}

// NewWebSocketServer creates a new relay; port 0 picks a free port
func NewWebSocketServer(host string, port int, encoder encoding.Encoder) *WebSocketServer {
	return &WebSocketServer{
		host:    host,
		port:    port,
		encoder: encoder,
		clients: make(map[*websocket.Conn]bool),
		ready:   make(chan struct{}),
	}
}

// Handler returns the relay's HTTP routes
func (s *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", s.handleWebSocket)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start listens until ctx is cancelled
func (s *WebSocketServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	close(s.ready)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("relay listening", "url", s.GetAddress())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("relay server failed: %w", err)
		}
		return nil
	}
}

// Ready is closed once Start has bound its listener
func (s *WebSocketServer) Ready() <-chan struct{} {
	return s.ready
}

func (s *WebSocketServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Nexus live relay\n\n")
	fmt.Fprintf(w, "WebSocket endpoint: /live (%s)\n", s.encoder.ContentType())
	fmt.Fprintf(w, "Connected clients: %d\n", s.GetClientCount())
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade connection", "error", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.mu.Unlock()

	slog.Info("relay client connected", "remote", r.RemoteAddr, "clients", clientCount)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.mu.Unlock()

		conn.Close()
		slog.Info("relay client disconnected", "clients", clientCount)
	}()

	// Clients only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Broadcast sends a frame to all connected clients
func (s *WebSocketServer) Broadcast(frame models.LiveFrame) error {
	data, err := s.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	messageType := websocket.TextMessage
	if s.encoder.Binary() {
		messageType = websocket.BinaryMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteMessage(messageType, data); err != nil {
			// the read loop removes the client
			slog.Debug("failed to send to relay client", "error", err)
		}
	}
	return nil
}

// BroadcastFromChannel relays frames until ctx is cancelled or frames closes
func (s *WebSocketServer) BroadcastFromChannel(ctx context.Context, frames <-chan models.LiveFrame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := s.Broadcast(frame); err != nil {
				slog.Warn("relay broadcast failed", "error", err)
			}
		}
	}
}

// GetClientCount returns the number of connected clients
func (s *WebSocketServer) GetClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown closes all clients and stops the server
func (s *WebSocketServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	server := s.server
	s.mu.Unlock()

	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the relay URL once listening
func (s *WebSocketServer) GetAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := s.addr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", s.host, s.port)
	}
	return "ws://" + addr + "/live"
}
