// SPDX-License-Identifier: MIT
/*
Package audio captures mono frames and drives them through the spectrum
analyzer to the viewers:
- Capture from a PortAudio device or a PCM WAV file
- Noise gate that skips analysis of silent frames
- Frame-rate limited delivery to a transport
- Optional WAV recording of the captured frames

Thread Safety:
- Run owns the frame and bar buffers; nothing in the loop allocates
- Counters, the gate and the recorder are atomic so other goroutines
  may inspect and adjust a running engine
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"visbridge/internal/analysis"
	applog "visbridge/internal/log"
	"visbridge/internal/transport"
)

var logger = applog.For("audio")

// DefaultIdleInterval is how long the engine sleeps between checks for a
// viewer when nobody is connected.
const DefaultIdleInterval = 50 * time.Millisecond

// Analyzer is the part of *analysis.Analyzer the engine drives.
type Analyzer interface {
	analysis.FrameProcessor
	analysis.BarsProvider
	FFTSize() int
	Clear()
}

// Options tunes the engine loop.
type Options struct {
	// SendInterval is the minimum time between frames handed to the sink.
	// Zero sends every frame.
	SendInterval time.Duration

	// IdleWithoutClients stops reading audio while a sink that counts its
	// viewers reports none.
	IdleWithoutClients bool

	// IdleInterval overrides DefaultIdleInterval.
	IdleInterval time.Duration

	// GateThreshold enables the noise gate when positive.
	GateThreshold float64
}

// Stats is a snapshot of the engine counters.
type Stats struct {
	FramesRead     uint64
	FramesAnalysed uint64
	FramesGated    uint64
	FramesSent     uint64
	SendErrors     uint64
	Overruns       uint64 // frames whose analysis exceeded the frame duration
}

type Engine struct {
	source   Source
	analyzer Analyzer
	sink     transport.Transport
	opts     Options

	gate     Gate
	recorder atomic.Pointer[Recorder]

	// budget is the wall-clock duration of one frame.
	budget time.Duration
	now    func() time.Time

	framesRead     atomic.Uint64
	framesAnalysed atomic.Uint64
	framesGated    atomic.Uint64
	framesSent     atomic.Uint64
	sendErrors     atomic.Uint64
	overruns       atomic.Uint64
}

// NewEngine wires a source, an analyzer and a sink together.
func NewEngine(source Source, analyzer Analyzer, sink transport.Transport, opts Options) (*Engine, error) {
	if source == nil || analyzer == nil || sink == nil {
		return nil, errors.New("engine requires a source, an analyzer and a sink")
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}

	e := &Engine{
		source:   source,
		analyzer: analyzer,
		sink:     sink,
		opts:     opts,
		now:      time.Now,
	}
	if sr := source.SampleRate(); sr > 0 {
		e.budget = time.Duration(float64(analyzer.FFTSize()) / sr * float64(time.Second))
	}
	if opts.GateThreshold > 0 {
		e.gate.SetThreshold(opts.GateThreshold)
		e.gate.Enable()
	}
	return e, nil
}

// Run reads, analyses and sends frames until ctx is cancelled or the source
// is exhausted, both of which return nil. Any other source error stops the
// loop and is returned. Send errors are counted and logged; a viewer going
// away must not stop capture.
func (e *Engine) Run(ctx context.Context) error {
	frame := make([]float32, e.analyzer.FFTSize())
	bars := make([]float32, e.analyzer.BarCount())
	counter, counts := e.sink.(transport.ClientCounter)
	idle := e.opts.IdleWithoutClients && counts

	var lastSend time.Time
	var idleTimer *time.Timer
	wasIdle := false

	logger.Infof("Engine running (Frame: %d, Bars: %d, Budget: %s, SendInterval: %s, Gate: %v)",
		len(frame), len(bars), e.budget, e.opts.SendInterval, e.gate.Enabled())

	for {
		if ctx.Err() != nil {
			return nil
		}

		// --- 1. Idle while nobody is watching ---
		if idle && counter.Clients() == 0 {
			if !wasIdle {
				logger.Infof("No clients connected; idling")
				wasIdle = true
			}
			if idleTimer == nil {
				idleTimer = time.NewTimer(e.opts.IdleInterval)
			} else {
				idleTimer.Reset(e.opts.IdleInterval)
			}
			select {
			case <-ctx.Done():
				idleTimer.Stop()
				return nil
			case <-idleTimer.C:
			}
			continue
		}
		if wasIdle {
			logger.Infof("Client connected; resuming capture")
			wasIdle = false
		}

		// --- 2. Capture ---
		if err := e.source.ReadFrame(ctx, frame); err != nil {
			if errors.Is(err, io.EOF) {
				logger.Infof("Input exhausted after %d frames", e.framesRead.Load())
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}
		e.framesRead.Add(1)

		if rec := e.recorder.Load(); rec != nil {
			if err := rec.Write(frame); err != nil {
				logger.Errorf("Recording stopped: %v", err)
				e.StopRecording()
			}
		}

		// --- 3. Analyse ---
		start := e.now()
		if err := e.processFrame(frame, bars); err != nil {
			return err
		}
		if elapsed := e.now().Sub(start); e.budget > 0 && elapsed > e.budget {
			if n := e.overruns.Add(1); n == 1 || n%100 == 0 {
				logger.Warnf("Analysis took %s, longer than the %s frame (%d overruns)", elapsed, e.budget, n)
			}
		}

		// --- 4. Send, rate limited ---
		now := e.now()
		if !lastSend.IsZero() && now.Sub(lastSend) < e.opts.SendInterval {
			continue
		}
		lastSend = now
		if err := e.sink.Send(bars); err != nil {
			if n := e.sendErrors.Add(1); n == 1 || n%100 == 0 {
				logger.Warnf("Send failed (%d errors): %v", n, err)
			}
			continue
		}
		e.framesSent.Add(1)
	}
}

// processFrame gates and analyses one frame into bars.
func (e *Engine) processFrame(frame, bars []float32) error {
	if !e.gate.Open(frame) {
		e.framesGated.Add(1)
		e.analyzer.Clear()
		clear(bars)
		return nil
	}
	if err := e.analyzer.Process(frame); err != nil {
		return fmt.Errorf("failed to analyse frame: %w", err)
	}
	if err := e.analyzer.GetBarsInto(bars); err != nil {
		return fmt.Errorf("failed to read bars: %w", err)
	}
	e.framesAnalysed.Add(1)
	return nil
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		FramesRead:     e.framesRead.Load(),
		FramesAnalysed: e.framesAnalysed.Load(),
		FramesGated:    e.framesGated.Load(),
		FramesSent:     e.framesSent.Load(),
		SendErrors:     e.sendErrors.Load(),
		Overruns:       e.overruns.Load(),
	}
}

// Close stops any recording and closes the source. The sink belongs to
// the caller.
func (e *Engine) Close() error {
	return errors.Join(e.StopRecording(), e.source.Close())
}

var _ Analyzer = (*analysis.Analyzer)(nil)
