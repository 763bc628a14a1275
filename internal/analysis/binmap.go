// SPDX-License-Identifier: MIT
package analysis

import "math"

// BinRange is an inclusive range of spectrum bin indices contributing to
// one bar.
type BinRange struct {
	Lo, Hi int
}

// Len returns the number of bins in the range.
func (r BinRange) Len() int {
	return r.Hi - r.Lo + 1
}

// BarEdges returns the lower and upper edge frequency, in Hz, of bar i.
// Edges are geometrically spaced between FreqMin and FreqMax so each bar
// covers the same musical interval.
func BarEdges(p Params, i int) (lo, hi float64) {
	ratio := p.FreqMax / p.FreqMin
	n := float64(p.BarCount)
	lo = p.FreqMin * math.Pow(ratio, float64(i)/n)
	hi = p.FreqMin * math.Pow(ratio, float64(i+1)/n)
	return lo, hi
}

// ComputeBinMap maps every bar onto the spectrum bins covering its edge
// frequencies. p must be valid (see Params.Validate).
//
// Bin indices are floor(f * fftSize / sampleRate). The DC bin and the
// Nyquist bin are never used: every range satisfies
// 1 <= Lo <= Hi <= fftSize/2-1, and bars narrower than one bin are widened
// to a single bin so each bar always has data. Lo and Hi are non-decreasing
// across bars.
func ComputeBinMap(p Params) []BinRange {
	ranges := make([]BinRange, p.BarCount)
	scale := float64(p.FFTSize) / p.SampleRate
	maxBin := p.FFTSize/2 - 1

	for i := range ranges {
		fLo, fHi := BarEdges(p, i)
		lo := int(math.Floor(fLo * scale))
		hi := int(math.Floor(fHi * scale))

		lo = min(max(lo, 1), maxBin)
		hi = min(hi, maxBin)
		if hi < lo {
			hi = lo
		}
		ranges[i] = BinRange{Lo: lo, Hi: hi}
	}
	return ranges
}
