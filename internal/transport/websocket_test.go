// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// startServer binds an ephemeral loopback port.
func startServer(t *testing.T, path string) *WebSocketServer {
	t.Helper()
	s := NewWebSocketServer("127.0.0.1:0", path)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func dial(t *testing.T, s *WebSocketServer, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+path, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitClients polls until the server reports want clients.
func waitClients(t *testing.T, s *WebSocketServer, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Clients() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Clients() = %d, want %d", s.Clients(), want)
}

func TestWebSocketServerBroadcast(t *testing.T) {
	s := startServer(t, "/")
	c1 := dial(t, s, "/")
	c2 := dial(t, s, "/")
	waitClients(t, s, 2)

	bars := []float32{0, 0.5, 1}
	if err := s.Send(bars); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for i, c := range []*websocket.Conn{c1, c2} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		typ, data, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("client %d ReadMessage: %v", i, err)
		}
		if typ != websocket.BinaryMessage {
			t.Errorf("client %d message type = %d, want binary", i, typ)
		}
		got, err := DecodeBars(data)
		if err != nil {
			t.Fatalf("client %d DecodeBars: %v", i, err)
		}
		if len(got) != len(bars) || got[1] != 0.5 || got[2] != 1 {
			t.Errorf("client %d got %v, want %v", i, got, bars)
		}
	}
}

func TestWebSocketServerCustomPath(t *testing.T) {
	s := startServer(t, "/bars")
	if _, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/other", nil); err == nil {
		t.Error("expected upgrade failure on an unserved path")
	}
	dial(t, s, "/bars")
	waitClients(t, s, 1)
}

func TestWebSocketServerClientDisconnect(t *testing.T) {
	s := startServer(t, "/")
	c := dial(t, s, "/")
	waitClients(t, s, 1)

	c.Close()
	waitClients(t, s, 0)

	// Sending with nobody attached is not an error.
	if err := s.Send([]float32{1}); err != nil {
		t.Errorf("Send with no clients = %v", err)
	}
}

func TestWebSocketServerStartErrors(t *testing.T) {
	// Occupy a port so the bind fails synchronously.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s := NewWebSocketServer(ln.Addr().String(), "/")
	if err := s.Start(); err == nil {
		s.Close()
		t.Fatal("expected bind error for an occupied port")
	}

	s = startServer(t, "/")
	if err := s.Start(); err == nil {
		t.Error("expected error when starting twice")
	}
}

func TestWebSocketServerClose(t *testing.T) {
	s := NewWebSocketServer("127.0.0.1:0", "/")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	c := dial(t, s, "/")
	waitClients(t, s, 1)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if s.Clients() != 0 {
		t.Errorf("Clients() after Close = %d", s.Clients())
	}
	if err := s.Send([]float32{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	if err := s.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c.ReadMessage(); err == nil {
		t.Error("client should observe the server closing")
	}

	select {
	case _, ok := <-s.Done():
		if ok {
			t.Error("Done delivered an error for a clean shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Error("Done not closed after Close")
	}
}
