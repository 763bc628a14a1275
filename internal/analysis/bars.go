// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"sync"

	applog "visbridge/internal/log"
)

var logger = applog.For("analysis")

// Analyzer turns fixed-size mono frames into log-spaced, decibel-scaled bars
// in [0, 1]. The window and bin tables are resolved once per analyzer (and
// shared process-wide between analyzers with the same configuration); the
// spectrum and magnitude scratch buffers belong to the analyzer.
//
// ComputeBars must not be called concurrently on the same Analyzer. Process
// serialises itself and publishes a snapshot that GetBars and GetBarsInto
// may read from any goroutine.
type Analyzer struct {
	params Params
	fft    Transformer

	once   sync.Once
	tables *tables

	spectrum []Complex
	mag      []float32
	ref      float32 // fftSize/2, the 0 dB amplitude
	span     float64 // -FloorDB

	procMu  sync.Mutex
	scratch []float32 // Process output before publishing

	latestMu sync.RWMutex
	latest   []float32
}

// Compile-time checks for interface implementations.
var (
	_ FrameProcessor = (*Analyzer)(nil)
	_ BarsProvider   = (*Analyzer)(nil)
)

// NewAnalyzer validates p and allocates the per-instance buffers. The
// tables are built lazily on the first frame; call Init to build them
// up front.
func NewAnalyzer(p Params) (*Analyzer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	fft, err := NewTransformer(p.FFTSize, p.Backend)
	if err != nil {
		return nil, err
	}

	logger.Infof("Initializing analyzer (FFT: %d, Bars: %d, SampleRate: %.1f Hz, Range: %.0f-%.0f Hz, Window: %v, Backend: %v)",
		p.FFTSize, p.BarCount, p.SampleRate, p.FreqMin, p.FreqMax, p.Window, p.Backend)

	return &Analyzer{
		params:   p,
		fft:      fft,
		spectrum: make([]Complex, p.FFTSize),
		mag:      make([]float32, p.FFTSize/2),
		ref:      float32(p.FFTSize) * 0.5,
		span:     -p.FloorDB,
		scratch:  make([]float32, p.BarCount),
		latest:   make([]float32, p.BarCount),
	}, nil
}

// Init resolves the window and bin tables. It is idempotent and safe to
// call from multiple goroutines.
func (a *Analyzer) Init() {
	a.once.Do(func() {
		a.tables = sharedTables(a.params)
		logger.Debugf("Tables ready (%d bars, %d window coefficients)", len(a.tables.bins), len(a.tables.window))
	})
}

// ComputeBars analyses one frame. samples must hold exactly FFTSize values
// and bars exactly BarCount; every written bar lies in [0, 1] unless
// sanitising is disabled and the frame contains non-finite samples.
func (a *Analyzer) ComputeBars(samples, bars []float32) error {
	n := a.params.FFTSize
	if len(samples) != n {
		return fmt.Errorf("%w: got %d, want %d", ErrSampleLength, len(samples), n)
	}
	if len(bars) != a.params.BarCount {
		return fmt.Errorf("%w: got %d, want %d", ErrBarsLength, len(bars), a.params.BarCount)
	}
	a.Init()

	// --- 1. Window into the complex buffer ---
	window := a.tables.window
	sanitize := a.params.SanitizeInput
	for i, s := range samples {
		if sanitize && !isFinite(s) {
			s = 0
		}
		a.spectrum[i] = Complex{Re: s * window[i]}
	}

	// --- 2. Transform ---
	if err := a.fft.Transform(a.spectrum); err != nil {
		return err
	}

	// --- 3. Magnitudes (first half, real input is symmetric) ---
	for k := range a.mag {
		a.mag[k] = a.spectrum[k].Abs()
	}

	// --- 4. Average per bar, convert to dB, normalise ---
	for b, r := range a.tables.bins {
		var sum float32
		for k := r.Lo; k <= r.Hi; k++ {
			sum += a.mag[k]
		}
		var avg float32
		if count := r.Len(); count > 0 {
			avg = sum / float32(count)
		}
		bars[b] = a.normalize(avg)
	}
	return nil
}

// normalize maps an average magnitude onto [0, 1] against the fixed
// dynamic range [FloorDB, 0] dB relative to fftSize/2.
func (a *Analyzer) normalize(avg float32) float32 {
	db := 20 * math.Log10(float64(avg/a.ref)+epsilon)
	norm := (db + a.span) / a.span
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	return float32(norm)
}

// Process analyses a frame and publishes the result as the latest bars.
func (a *Analyzer) Process(samples []float32) error {
	a.procMu.Lock()
	defer a.procMu.Unlock()

	if err := a.ComputeBars(samples, a.scratch); err != nil {
		return err
	}

	a.latestMu.Lock()
	copy(a.latest, a.scratch)
	a.latestMu.Unlock()
	return nil
}

// Clear publishes an all-zero frame, e.g. for input below the noise gate.
func (a *Analyzer) Clear() {
	a.latestMu.Lock()
	clear(a.latest)
	a.latestMu.Unlock()
}

// GetBars returns a copy of the latest published bars.
// It allocates; use GetBarsInto on hot paths.
func (a *Analyzer) GetBars() []float32 {
	a.latestMu.RLock()
	defer a.latestMu.RUnlock()

	out := make([]float32, len(a.latest))
	copy(out, a.latest)
	return out
}

// GetBarsInto copies the latest published bars into dst, which must hold
// exactly BarCount values.
func (a *Analyzer) GetBarsInto(dst []float32) error {
	a.latestMu.RLock()
	defer a.latestMu.RUnlock()

	if len(dst) != len(a.latest) {
		return fmt.Errorf("%w: got %d, want %d", ErrBarsLength, len(dst), len(a.latest))
	}
	copy(dst, a.latest)
	return nil
}

// Params returns the analyzer's configuration.
func (a *Analyzer) Params() Params { return a.params }

// FFTSize returns the frame length the analyzer expects.
func (a *Analyzer) FFTSize() int { return a.params.FFTSize }

// BarCount returns the number of bars produced per frame.
func (a *Analyzer) BarCount() int { return a.params.BarCount }

// BinRanges returns a copy of the bar to bin mapping.
func (a *Analyzer) BinRanges() []BinRange {
	a.Init()
	out := make([]BinRange, len(a.tables.bins))
	copy(out, a.tables.bins)
	return out
}

// Window returns the shared window table. Callers must not modify it.
func (a *Analyzer) Window() []float32 {
	a.Init()
	return a.tables.window
}

// BarFrequencies returns the edge frequencies of bar i in Hz.
func (a *Analyzer) BarFrequencies(i int) (lo, hi float64) {
	return BarEdges(a.params, i)
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
