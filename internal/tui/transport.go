// SPDX-License-Identifier: MIT
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"visbridge/internal/transport"
)

// messageSender is the part of *tea.Program the transport needs.
type messageSender interface {
	Send(msg tea.Msg)
	Quit()
}

// Transport delivers bars to a running Bubble Tea program as BarsMsg.
type Transport struct {
	program messageSender

	mu     sync.Mutex
	closed bool
}

// NewTransport wraps p. Send blocks until the program's event loop takes
// the message, so the program should already be running.
func NewTransport(p *tea.Program) *Transport {
	return &Transport{program: p}
}

// Send copies bars into a BarsMsg; the engine reuses its buffer.
func (t *Transport) Send(bars []float32) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}

	msg := make(BarsMsg, len(bars))
	copy(msg, bars)
	t.program.Send(msg)
	return nil
}

// Close asks the program to quit. It is safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		t.program.Quit()
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
