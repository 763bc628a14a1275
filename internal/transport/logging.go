// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "visbridge/internal/log"
)

// LoggingTransport implements the Transport interface by logging frames at
// debug level. It is useful when no viewer is wanted, e.g. while tuning the
// analysis from the command line.
type LoggingTransport struct {
	frames atomic.Uint64
	closed atomic.Bool
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	logger.Infof("Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received bars.
func (lt *LoggingTransport) Send(bars []float32) error {
	if lt.closed.Load() {
		return ErrClosed
	}
	n := lt.frames.Add(1)
	if applog.GetLevel() <= applog.LevelDebug {
		logger.Debugf("frame %d: %v", n, bars)
	}
	return nil
}

// Frames returns the number of frames logged so far.
func (lt *LoggingTransport) Frames() uint64 { return lt.frames.Load() }

// Close marks the transport closed. Later calls to Send fail.
func (lt *LoggingTransport) Close() error {
	if lt.closed.CompareAndSwap(false, true) {
		logger.Infof("LoggingTransport closed after %d frames", lt.frames.Load())
	}
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
