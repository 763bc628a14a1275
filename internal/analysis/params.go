// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"visbridge/pkg/bitint"
)

// Backend selects the transform implementation behind an Analyzer.
type Backend int

const (
	// Radix2 is the in-place single-precision Cooley-Tukey transform.
	Radix2 Backend = iota
	// Gonum delegates to gonum's complex FFT (double precision, allocates
	// nothing per frame once constructed).
	Gonum
)

func (b Backend) String() string {
	switch b {
	case Radix2:
		return "radix2"
	case Gonum:
		return "gonum"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend converts a backend name (case-insensitive) to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "radix2":
		return Radix2, nil
	case "gonum":
		return Gonum, nil
	default:
		return Radix2, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// Defaults for a 44.1 kHz stream analysed in ~23 ms frames.
const (
	DefaultFFTSize    = 1024
	DefaultBarCount   = 24
	DefaultSampleRate = 44100.0
	DefaultFreqMin    = 20.0
	DefaultFreqMax    = 20000.0
	DefaultFloorDB    = -60.0

	// epsilon keeps log10 finite for silent bars.
	epsilon = 1e-10
)

// Params is the full analysis configuration. FFTSize, BarCount, SampleRate,
// FreqMin, FreqMax and Window determine the cached tables; changing any of
// them yields a different table set.
type Params struct {
	FFTSize    int
	BarCount   int
	SampleRate float64
	FreqMin    float64
	FreqMax    float64

	// FloorDB is the level mapped to 0.0; 0 dB relative to fftSize/2 maps to 1.0.
	FloorDB float64

	Window  WindowFunc
	Backend Backend

	// SanitizeInput replaces NaN and ±Inf samples with zero before windowing.
	SanitizeInput bool
}

// DefaultParams returns the reference configuration.
func DefaultParams() Params {
	return Params{
		FFTSize:       DefaultFFTSize,
		BarCount:      DefaultBarCount,
		SampleRate:    DefaultSampleRate,
		FreqMin:       DefaultFreqMin,
		FreqMax:       DefaultFreqMax,
		FloorDB:       DefaultFloorDB,
		Window:        Hann,
		Backend:       Radix2,
		SanitizeInput: true,
	}
}

// Validate reports the first configuration problem found, wrapped around
// one of the Err* sentinels.
func (p Params) Validate() error {
	if p.FFTSize < 4 || !bitint.IsPowerOfTwo(p.FFTSize) {
		return fmt.Errorf("%w: got %d (nearest valid size is %d)",
			ErrFFTSize, p.FFTSize, bitint.NextPowerOfTwo(max(p.FFTSize, 4)))
	}
	if p.BarCount <= 0 {
		return fmt.Errorf("%w: got %d", ErrBarCount, p.BarCount)
	}
	if !(p.SampleRate > 0) {
		return fmt.Errorf("%w: got %g", ErrSampleRate, p.SampleRate)
	}
	if !(p.FreqMin > 0) {
		return fmt.Errorf("%w: freq min must be positive, got %g", ErrFreqRange, p.FreqMin)
	}
	if !(p.FreqMin < p.FreqMax) {
		return fmt.Errorf("%w: freq min %g must be below freq max %g", ErrFreqRange, p.FreqMin, p.FreqMax)
	}
	if nyquist := p.SampleRate / 2; p.FreqMax > nyquist {
		return fmt.Errorf("%w: freq max %g exceeds nyquist %g", ErrFreqRange, p.FreqMax, nyquist)
	}
	if !(p.FloorDB < 0) {
		return fmt.Errorf("%w: got %g", ErrFloor, p.FloorDB)
	}
	if _, ok := windowNames[p.Window]; !ok {
		return fmt.Errorf("%w: %v", ErrUnknownWindow, p.Window)
	}
	if p.Backend != Radix2 && p.Backend != Gonum {
		return fmt.Errorf("%w: %v", ErrUnknownBackend, p.Backend)
	}
	return nil
}

// BinWidth returns the width of one spectrum bin in Hz.
func (p Params) BinWidth() float64 {
	return p.SampleRate / float64(p.FFTSize)
}

// FrameDuration returns the wall-clock span of one analysis frame in seconds,
// which is also the real-time budget for analysing it.
func (p Params) FrameDuration() float64 {
	return float64(p.FFTSize) / p.SampleRate
}
