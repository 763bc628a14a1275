// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout bounds a single write to one client. A viewer that
// cannot take a frame within this time is dropped.
const DefaultWriteTimeout = 250 * time.Millisecond

// WebSocketServer implements the Transport interface for WebSocket viewers.
// Each Send is broadcast to every connected client as one binary message
// holding the bars as little-endian float32 values.
//
// Thread Safety:
//   - clientsMu protects the client set and serialises writes, which
//     gorilla/websocket requires (one concurrent writer per connection)
//   - the frame buffer is reused under the same lock
type WebSocketServer struct {
	addr         string
	path         string
	writeTimeout time.Duration

	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener
	serveErr chan error

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
	frame     []byte
	closed    bool
}

// NewWebSocketServer creates a server for addr ("host:port") that upgrades
// requests on path. It does not listen until Start is called.
func NewWebSocketServer(addr, path string) *WebSocketServer {
	if path == "" {
		path = "/"
	}
	return &WebSocketServer{
		addr:         addr,
		path:         path,
		writeTimeout: DefaultWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local viewers are served from arbitrary origins (file://, dev servers)
			},
		},
		clients:  make(map[*websocket.Conn]struct{}),
		serveErr: make(chan error, 1),
	}
}

// Start binds the listening socket and serves connections in the
// background. Bind errors are returned here rather than logged later.
func (s *WebSocketServer) Start() error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.listener != nil {
		return fmt.Errorf("websocket server already started on %s", s.listener.Addr())
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("WebSocket server listening on ws://%s%s", ln.Addr(), s.path)
		err := s.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("WebSocket server error: %v", err)
			s.serveErr <- err
		}
		close(s.serveErr)
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *WebSocketServer) Addr() string {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Done is closed when the server stops serving. If serving failed the error
// is delivered before the channel closes.
func (s *WebSocketServer) Done() <-chan error { return s.serveErr }

// handleWebSocket upgrades HTTP connections and registers the client.
func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	if s.closed {
		s.clientsMu.Unlock()
		conn.Close()
		return
	}
	s.clients[conn] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	logger.Infof("Client connected from %s, total: %d", conn.RemoteAddr(), total)

	// Viewers never send anything meaningful; reading only detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn, "disconnected")
				return
			}
		}
	}()
}

// drop removes conn from the client set and closes it.
func (s *WebSocketServer) drop(conn *websocket.Conn, reason string) {
	s.clientsMu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	total := len(s.clients)
	s.clientsMu.Unlock()

	if ok {
		conn.Close()
		logger.Infof("Client %s %s, total: %d", conn.RemoteAddr(), reason, total)
	}
}

// Send broadcasts bars to all connected clients. Clients whose write fails
// are closed and removed; that is not an error for the caller.
func (s *WebSocketServer) Send(bars []float32) error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if len(s.clients) == 0 {
		return nil
	}

	s.frame = EncodeBars(s.frame[:0], bars)
	deadline := time.Now().Add(s.writeTimeout)
	for conn := range s.clients {
		conn.SetWriteDeadline(deadline)
		if err := conn.WriteMessage(websocket.BinaryMessage, s.frame); err != nil {
			logger.Warnf("Dropping client %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
	return nil
}

// Clients returns the number of connected viewers.
func (s *WebSocketServer) Clients() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Close closes every client connection and shuts the server down. It is
// safe to call more than once.
func (s *WebSocketServer) Close() error {
	s.clientsMu.Lock()
	if s.closed {
		s.clientsMu.Unlock()
		return nil
	}
	s.closed = true
	for conn := range s.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.writeTimeout))
		conn.Close()
		delete(s.clients, conn)
	}
	server := s.server
	s.clientsMu.Unlock()

	logger.Infof("Closing WebSocket server")
	if server != nil {
		return server.Close()
	}
	return nil
}

// Ensure WebSocketServer satisfies the interfaces.
var (
	_ Transport     = (*WebSocketServer)(nil)
	_ ClientCounter = (*WebSocketServer)(nil)
)
