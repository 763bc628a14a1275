// SPDX-License-Identifier: MIT
package transport

import (
	"errors"

	applog "visbridge/internal/log"
)

var logger = applog.For("transport")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport delivers one frame of bars to its viewers. Implementations must
// be safe for concurrent use and must not retain bars after Send returns.
type Transport interface {
	Send(bars []float32) error
	Close() error
}

// ClientCounter is implemented by transports that know how many viewers are
// attached. The engine idles while the count is zero.
type ClientCounter interface {
	Clients() int
}

// Multi fans every frame out to several transports.
type Multi []Transport

// Send forwards bars to every member and joins their errors. A failing
// member does not prevent delivery to the others.
func (m Multi) Send(bars []float32) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(bars); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every member and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clients sums the viewers of the members. A member that cannot count its
// viewers (a log, a terminal) always counts as one.
func (m Multi) Clients() int {
	n := 0
	for _, t := range m {
		if c, ok := t.(ClientCounter); ok {
			n += c.Clients()
		} else {
			n++
		}
	}
	return n
}

var (
	_ Transport     = Multi(nil)
	_ ClientCounter = Multi(nil)
)
