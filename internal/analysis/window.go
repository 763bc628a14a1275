// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the taper applied to each frame before the transform.
type WindowFunc int

// Available window functions. Hann is the default and the only one whose
// endpoints are exactly zero, which the bar scaling was tuned against.
const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Nuttall
	Lanczos
	Rectangular
)

var windowNames = map[WindowFunc]string{
	Hann:            "hann",
	Hamming:         "hamming",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	BartlettHann:    "bartletthann",
	Nuttall:         "nuttall",
	Lanczos:         "lanczos",
	Rectangular:     "rectangular",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. It
// returns Hann together with an error when the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "nuttall":
		return Nuttall, nil
	case "lanczos":
		return Lanczos, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("%w: %q", ErrUnknownWindow, name)
	}
}

// NewWindow returns size taper coefficients for fn.
//
// All gonum windows here are the symmetric (N-1 denominator) forms, so Hann
// yields w[i] = 0.5*(1 - cos(2*pi*i/(size-1))): zero at both ends and unity
// at the centre for odd sizes.
func NewWindow(size int, fn WindowFunc) []float32 {
	if size <= 0 {
		return nil
	}
	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1
	}
	if size > 1 {
		switch fn {
		case Hann:
			window.Hann(coeffs)
		case Hamming:
			window.Hamming(coeffs)
		case Blackman:
			window.Blackman(coeffs)
		case BlackmanNuttall:
			window.BlackmanNuttall(coeffs)
		case BartlettHann:
			window.BartlettHann(coeffs)
		case Nuttall:
			window.Nuttall(coeffs)
		case Lanczos:
			window.Lanczos(coeffs)
		case Rectangular:
			window.Rectangular(coeffs)
		default:
			window.Hann(coeffs)
		}
	}

	out := make([]float32, size)
	for i, c := range coeffs {
		out[i] = float32(c)
	}
	return out
}
