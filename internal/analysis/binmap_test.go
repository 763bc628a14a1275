// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"testing"
)

func TestBinMapInvariants(t *testing.T) {
	configs := []Params{
		DefaultParams(),
		{FFTSize: 4, BarCount: 8, SampleRate: 8000, FreqMin: 20, FreqMax: 4000},
		{FFTSize: 256, BarCount: 64, SampleRate: 48000, FreqMin: 30, FreqMax: 16000},
		{FFTSize: 2048, BarCount: 24, SampleRate: 44100, FreqMin: 20, FreqMax: 22050},
		{FFTSize: 8192, BarCount: 128, SampleRate: 96000, FreqMin: 10, FreqMax: 48000},
		{FFTSize: 512, BarCount: 1, SampleRate: 22050, FreqMin: 100, FreqMax: 200},
	}

	for _, p := range configs {
		t.Run(fmt.Sprintf("N=%d bars=%d sr=%.0f", p.FFTSize, p.BarCount, p.SampleRate), func(t *testing.T) {
			if p.FloorDB == 0 {
				p.FloorDB = DefaultFloorDB
			}
			if err := p.Validate(); err != nil {
				t.Fatalf("config should be valid: %v", err)
			}

			bins := ComputeBinMap(p)
			if len(bins) != p.BarCount {
				t.Fatalf("len = %d, want %d", len(bins), p.BarCount)
			}

			maxBin := p.FFTSize/2 - 1
			for i, r := range bins {
				if r.Lo < 1 || r.Lo > r.Hi || r.Hi > maxBin {
					t.Errorf("bar %d: range %+v violates 1 <= lo <= hi <= %d", i, r, maxBin)
				}
				if r.Len() < 1 {
					t.Errorf("bar %d: empty range %+v", i, r)
				}
				if i > 0 {
					prev := bins[i-1]
					if r.Lo < prev.Lo || r.Hi < prev.Hi {
						t.Errorf("bar %d: range %+v decreases from %+v", i, r, prev)
					}
				}
			}
		})
	}
}

func TestBinMapReferenceConfiguration(t *testing.T) {
	bins := ComputeBinMap(DefaultParams())

	// 20 Hz and 26.7 Hz both fall in bin 0, which is excluded.
	if bins[0] != (BinRange{Lo: 1, Hi: 1}) {
		t.Errorf("bar 0 = %+v, want {1 1}", bins[0])
	}
	// The last edge is 20 kHz: floor(20000 * 1024 / 44100) = 464.
	if last := bins[len(bins)-1]; last.Hi != 464 {
		t.Errorf("last bar hi = %d, want 464", last.Hi)
	}
	// Bar 10 spans ~355.6-474.2 Hz, bins 8..11.
	if bins[10] != (BinRange{Lo: 8, Hi: 11}) {
		t.Errorf("bar 10 = %+v, want {8 11}", bins[10])
	}
}

func TestBarEdgesAreGeometric(t *testing.T) {
	p := DefaultParams()
	lo0, _ := BarEdges(p, 0)
	_, hiLast := BarEdges(p, p.BarCount-1)
	if lo0 != p.FreqMin {
		t.Errorf("first edge = %f, want %f", lo0, p.FreqMin)
	}
	if d := hiLast - p.FreqMax; d > 1e-6 || d < -1e-6 {
		t.Errorf("last edge = %f, want %f", hiLast, p.FreqMax)
	}

	for i := range p.BarCount - 1 {
		_, hi := BarEdges(p, i)
		lo, _ := BarEdges(p, i+1)
		if d := hi - lo; d > 1e-9 || d < -1e-9 {
			t.Errorf("bar %d upper edge %f != bar %d lower edge %f", i, hi, i+1, lo)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	valid := DefaultParams()

	tests := []struct {
		name   string
		mutate func(p *Params)
		want   error
	}{
		{"Valid", func(p *Params) {}, nil},
		{"Non power of two", func(p *Params) { p.FFTSize = 1000 }, ErrFFTSize},
		{"Too small", func(p *Params) { p.FFTSize = 2 }, ErrFFTSize},
		{"Zero size", func(p *Params) { p.FFTSize = 0 }, ErrFFTSize},
		{"No bars", func(p *Params) { p.BarCount = 0 }, ErrBarCount},
		{"Zero sample rate", func(p *Params) { p.SampleRate = 0 }, ErrSampleRate},
		{"Zero freq min", func(p *Params) { p.FreqMin = 0 }, ErrFreqRange},
		{"Inverted range", func(p *Params) { p.FreqMin, p.FreqMax = 5000, 100 }, ErrFreqRange},
		{"Empty range", func(p *Params) { p.FreqMin, p.FreqMax = 440, 440 }, ErrFreqRange},
		{"Above nyquist", func(p *Params) { p.FreqMax = 22051 }, ErrFreqRange},
		{"Zero floor", func(p *Params) { p.FloorDB = 0 }, ErrFloor},
		{"Unknown window", func(p *Params) { p.Window = WindowFunc(99) }, ErrUnknownWindow},
		{"Unknown backend", func(p *Params) { p.Backend = Backend(7) }, ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParamsDerivedValues(t *testing.T) {
	p := DefaultParams()
	if w := p.BinWidth(); w < 43.06 || w > 43.07 {
		t.Errorf("BinWidth = %f, want ~43.07", w)
	}
	if d := p.FrameDuration(); d < 0.0232 || d > 0.0233 {
		t.Errorf("FrameDuration = %f, want ~0.0232", d)
	}
}
