// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"visbridge/pkg/bitint"
)

// Transformer computes an in-place forward DFT over a fixed-size buffer.
// Implementations are not safe for concurrent use; each Analyzer owns one.
type Transformer interface {
	Len() int
	Transform(buf []Complex) error
}

// NewTransformer returns the transform implementation selected by backend.
func NewTransformer(n int, backend Backend) (Transformer, error) {
	switch backend {
	case Radix2:
		return NewFFT(n)
	case Gonum:
		return newGonumFFT(n)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownBackend, backend)
	}
}

// FFT is an iterative radix-2 Cooley-Tukey transform for one power-of-two
// length. The per-stage twiddle step is precomputed; the running twiddle
// inside a block is built by repeated multiplication, as in the textbook
// formulation.
type FFT struct {
	n     int
	steps []Complex // steps[s] = e^{-2πi/len} for len = 2<<s
}

var _ Transformer = (*FFT)(nil)

// NewFFT prepares a transform of length n. n must be a power of two >= 2.
func NewFFT(n int) (*FFT, error) {
	if n < 2 || !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: got %d", ErrFFTSize, n)
	}

	stages := bitint.Log2(n)
	steps := make([]Complex, stages)
	for s := range stages {
		length := 2 << s
		angle := -2 * math.Pi / float64(length)
		steps[s] = Complex{Re: float32(math.Cos(angle)), Im: float32(math.Sin(angle))}
	}
	return &FFT{n: n, steps: steps}, nil
}

// Len returns the transform length.
func (f *FFT) Len() int { return f.n }

// Transform replaces buf with its forward DFT (angle -2π/len). buf must hold
// exactly Len() samples.
func (f *FFT) Transform(buf []Complex) error {
	if len(buf) != f.n {
		return fmt.Errorf("%w: got %d samples, want %d", ErrSampleLength, len(buf), f.n)
	}

	bitReverse(buf)

	n := f.n
	for s, length := 0, 2; length <= n; s, length = s+1, length<<1 {
		wn := f.steps[s]
		half := length >> 1
		for i := 0; i < n; i += length {
			w := Complex{Re: 1}
			for j := range half {
				u := buf[i+j]
				v := w.Mul(buf[i+j+half])
				buf[i+j] = u.Add(v)
				buf[i+j+half] = u.Sub(v)
				w = w.Mul(wn)
			}
		}
	}
	return nil
}

// bitReverse permutes buf so the element at index i moves to the index with
// the log2(len) low bits of i reversed. j tracks the reversed counterpart of
// i by propagating a carry from the top bit downwards; each pair is swapped
// once, when i < j.
func bitReverse(buf []Complex) {
	n := len(buf)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
}

// gonumFFT adapts gonum's double precision complex FFT to Transformer.
type gonumFFT struct {
	fft     *fourier.CmplxFFT
	scratch []complex128
}

var _ Transformer = (*gonumFFT)(nil)

func newGonumFFT(n int) (*gonumFFT, error) {
	if n < 2 || !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: got %d", ErrFFTSize, n)
	}
	return &gonumFFT{
		fft:     fourier.NewCmplxFFT(n),
		scratch: make([]complex128, n),
	}, nil
}

func (g *gonumFFT) Len() int { return len(g.scratch) }

func (g *gonumFFT) Transform(buf []Complex) error {
	if len(buf) != len(g.scratch) {
		return fmt.Errorf("%w: got %d samples, want %d", ErrSampleLength, len(buf), len(g.scratch))
	}
	for i, c := range buf {
		g.scratch[i] = c.complex128()
	}
	g.fft.Coefficients(g.scratch, g.scratch)
	for i, c := range g.scratch {
		buf[i] = fromComplex128(c)
	}
	return nil
}
