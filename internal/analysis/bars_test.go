// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"visbridge/pkg/utils"
)

func newTestAnalyzer(t testing.TB, mutate func(p *Params)) *Analyzer {
	t.Helper()
	p := DefaultParams()
	if mutate != nil {
		mutate(&p)
	}
	a, err := NewAnalyzer(p)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func computeBars(t *testing.T, a *Analyzer, samples []float32) []float32 {
	t.Helper()
	bars := make([]float32, a.BarCount())
	if err := a.ComputeBars(samples, bars); err != nil {
		t.Fatalf("ComputeBars: %v", err)
	}
	return bars
}

func TestSilenceFloor(t *testing.T) {
	for _, backend := range []Backend{Radix2, Gonum} {
		t.Run(backend.String(), func(t *testing.T) {
			a := newTestAnalyzer(t, func(p *Params) { p.Backend = backend })
			bars := computeBars(t, a, make([]float32, testFFTSize))
			for i, v := range bars {
				if v != 0 {
					t.Errorf("bar %d = %g, want 0 for silence", i, v)
				}
			}
		})
	}
}

func TestOutputRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := newTestAnalyzer(t, nil)

	signals := map[string][]float32{
		"sine 440":     utils.GenerateSineWave(testFFTSize, testSampleRate, 440, 1),
		"complex wave": utils.GenerateComplexWave(testFFTSize, testSampleRate),
		"dc":           utils.GenerateConstant(testFFTSize, 1),
		"clipped":      utils.GenerateConstant(testFFTSize, 1e6),
		"white noise":  make([]float32, testFFTSize),
		"square":       make([]float32, testFFTSize),
	}
	for i := range signals["white noise"] {
		signals["white noise"][i] = float32(rng.Float64()*2 - 1)
		if (i/32)%2 == 0 {
			signals["square"][i] = 1
		} else {
			signals["square"][i] = -1
		}
	}

	for name, samples := range signals {
		t.Run(name, func(t *testing.T) {
			for i, v := range computeBars(t, a, samples) {
				if v < 0 || v > 1 || math.IsNaN(float64(v)) {
					t.Errorf("bar %d = %g outside [0, 1]", i, v)
				}
			}
		})
	}
}

func TestDeterministicOutput(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	samples := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	first := computeBars(t, a, samples)
	second := computeBars(t, a, samples)
	for i := range first {
		if math.Float32bits(first[i]) != math.Float32bits(second[i]) {
			t.Errorf("bar %d differs between runs: %g vs %g", i, first[i], second[i])
		}
	}
}

func TestToneLocalization(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	bars := computeBars(t, a, utils.GenerateSineWave(testFFTSize, testSampleRate, 440, 1))

	toneBar := -1
	for i := range bars {
		lo, hi := a.BarFrequencies(i)
		if lo <= 440 && 440 < hi {
			toneBar = i
			break
		}
	}
	if toneBar < 0 {
		t.Fatal("no bar contains 440 Hz")
	}
	if bars[toneBar] <= 0 {
		t.Fatalf("tone bar %d = %g, want > 0", toneBar, bars[toneBar])
	}

	highBars := 0
	for i := range bars {
		lo, _ := a.BarFrequencies(i)
		if lo < 5000 {
			continue
		}
		highBars++
		if !(bars[toneBar] > bars[i]) {
			t.Errorf("tone bar %d (%g) not above high bar %d (%g)", toneBar, bars[toneBar], i, bars[i])
		}
	}
	if highBars == 0 {
		t.Fatal("expected at least one bar above 5 kHz")
	}

	if peak := utils.FindPeak(bars, 0, len(bars)-1); peak != toneBar {
		t.Errorf("loudest bar = %d, want %d", peak, toneBar)
	}
}

func TestBackendsAgree(t *testing.T) {
	radix := newTestAnalyzer(t, nil)
	ref := newTestAnalyzer(t, func(p *Params) { p.Backend = Gonum })
	samples := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	got := computeBars(t, radix, samples)
	want := computeBars(t, ref, samples)
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-3 {
			t.Errorf("bar %d: radix2 %g, gonum %g", i, got[i], want[i])
		}
	}
}

func TestNormalize(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	ref := float32(testFFTSize / 2)

	tests := []struct {
		name string
		avg  float32
		want float32
	}{
		{"Zero", 0, 0},
		{"Reference level", ref, 1},
		{"Above reference", ref * 4, 1},
		{"-30 dB", ref * float32(math.Pow(10, -30.0/20)), 0.5},
		{"-60 dB", ref * float32(math.Pow(10, -60.0/20)), 0},
		{"Below floor", ref * 1e-5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.normalize(tt.avg); math.Abs(float64(got-tt.want)) > 1e-4 {
				t.Errorf("normalize(%g) = %g, want %g", tt.avg, got, tt.want)
			}
		})
	}
}

func TestCustomFloor(t *testing.T) {
	a := newTestAnalyzer(t, func(p *Params) { p.FloorDB = -90 })
	ref := float32(testFFTSize / 2)
	// -60 dB sits two thirds of the way up a 90 dB range.
	got := a.normalize(ref * float32(math.Pow(10, -60.0/20)))
	if math.Abs(float64(got)-1.0/3) > 1e-4 {
		t.Errorf("normalize(-60 dB) with -90 dB floor = %g, want 0.333", got)
	}
}

func TestNonFiniteSamples(t *testing.T) {
	samples := utils.GenerateSineWave(testFFTSize, testSampleRate, 1000, 0.5)
	samples[10] = float32(math.NaN())
	samples[500] = float32(math.Inf(1))
	samples[900] = float32(math.Inf(-1))

	t.Run("Sanitized", func(t *testing.T) {
		a := newTestAnalyzer(t, nil)
		for i, v := range computeBars(t, a, samples) {
			if v < 0 || v > 1 || math.IsNaN(float64(v)) {
				t.Errorf("bar %d = %g outside [0, 1]", i, v)
			}
		}
	})

	t.Run("Propagated", func(t *testing.T) {
		a := newTestAnalyzer(t, func(p *Params) { p.SanitizeInput = false })
		bars := computeBars(t, a, samples)
		sawNaN := false
		for _, v := range bars {
			if math.IsNaN(float64(v)) {
				sawNaN = true
			}
		}
		if !sawNaN {
			t.Error("expected non-finite input to propagate when sanitising is off")
		}
	})
}

func TestComputeBarsLengthErrors(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	if err := a.ComputeBars(make([]float32, testFFTSize-1), make([]float32, a.BarCount())); !errors.Is(err, ErrSampleLength) {
		t.Errorf("short samples error = %v, want ErrSampleLength", err)
	}
	if err := a.ComputeBars(make([]float32, testFFTSize*2), make([]float32, a.BarCount())); !errors.Is(err, ErrSampleLength) {
		t.Errorf("long samples error = %v, want ErrSampleLength", err)
	}
	if err := a.ComputeBars(make([]float32, testFFTSize), make([]float32, 3)); !errors.Is(err, ErrBarsLength) {
		t.Errorf("bars error = %v, want ErrBarsLength", err)
	}
}

func TestNewAnalyzerRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.FFTSize = 1000
	if _, err := NewAnalyzer(p); !errors.Is(err, ErrFFTSize) {
		t.Errorf("NewAnalyzer error = %v, want ErrFFTSize", err)
	}

	p = DefaultParams()
	p.FreqMax = 30000
	if _, err := NewAnalyzer(p); !errors.Is(err, ErrFreqRange) {
		t.Errorf("NewAnalyzer error = %v, want ErrFreqRange", err)
	}
}

func TestTablesSharedAcrossAnalyzers(t *testing.T) {
	p := DefaultParams()
	p.BarCount = 31 // distinct from other tests' configurations

	var wg sync.WaitGroup
	analyzers := make([]*Analyzer, 8)
	for i := range analyzers {
		a, err := NewAnalyzer(p)
		if err != nil {
			t.Fatal(err)
		}
		analyzers[i] = a
	}
	for _, a := range analyzers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Init()
		}()
	}
	wg.Wait()

	tableCache.Lock()
	cached := tableCache.entries[keyFor(p)]
	tableCache.Unlock()
	for i, a := range analyzers {
		if a.tables != cached {
			t.Errorf("analyzer %d does not use the cached table set", i)
		}
	}
	first := analyzers[0].Window()
	for i, a := range analyzers[1:] {
		if &a.Window()[0] != &first[0] {
			t.Errorf("analyzer %d has its own window table", i+1)
		}
	}

	other := newTestAnalyzer(t, func(q *Params) { q.BarCount = 31; q.FreqMax = 16000 })
	if &other.Window()[0] == &first[0] {
		t.Error("different configurations should not share a table set")
	}
	if got := other.BinRanges(); len(got) != 31 {
		t.Errorf("BinRanges len = %d, want 31", len(got))
	}
}

func TestIndependentAnalyzersDoNotInterfere(t *testing.T) {
	loud := utils.GenerateSineWave(testFFTSize, testSampleRate, 440, 1)
	quiet := make([]float32, testFFTSize)

	a := newTestAnalyzer(t, nil)
	b := newTestAnalyzer(t, nil)
	want := computeBars(t, newTestAnalyzer(t, nil), loud)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out := make([]float32, a.BarCount())
		for range 200 {
			_ = a.ComputeBars(loud, out)
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			_ = b.Process(quiet)
		}
	}()
	wg.Wait()

	got := computeBars(t, a, loud)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bar %d = %g, want %g", i, got[i], want[i])
		}
	}
	for i, v := range b.GetBars() {
		if v != 0 {
			t.Errorf("quiet analyzer bar %d = %g, want 0", i, v)
		}
	}
}

func TestProcessPublishesLatestBars(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	samples := utils.GenerateSineWave(testFFTSize, testSampleRate, 440, 1)

	if err := a.Process(samples); err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := computeBars(t, a, samples)

	got := make([]float32, a.BarCount())
	if err := a.GetBarsInto(got); err != nil {
		t.Fatalf("GetBarsInto: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bar %d = %g, want %g", i, got[i], want[i])
		}
	}

	copyBars := a.GetBars()
	copyBars[0] = 42
	if a.GetBars()[0] == 42 {
		t.Error("GetBars returned internal storage")
	}

	if err := a.GetBarsInto(make([]float32, 2)); !errors.Is(err, ErrBarsLength) {
		t.Errorf("GetBarsInto error = %v, want ErrBarsLength", err)
	}
	if err := a.Process(samples[:10]); !errors.Is(err, ErrSampleLength) {
		t.Errorf("Process error = %v, want ErrSampleLength", err)
	}

	a.Clear()
	for i, v := range a.GetBars() {
		if v != 0 {
			t.Errorf("bar %d = %g after Clear, want 0", i, v)
		}
	}
}

func TestComputeBarsHotPath(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	samples := utils.GenerateComplexWave(testFFTSize, testSampleRate)
	bars := make([]float32, a.BarCount())

	// Warm-up builds the tables.
	_ = a.ComputeBars(samples, bars)
	allocs := testing.AllocsPerRun(100, func() {
		_ = a.ComputeBars(samples, bars)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in ComputeBars hot path, got %.1f", allocs)
	}

	allocs = testing.AllocsPerRun(100, func() {
		_ = a.Process(samples)
		_ = a.GetBarsInto(bars)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Process/GetBarsInto, got %.1f", allocs)
	}
}

func BenchmarkComputeBars(b *testing.B) {
	a := newTestAnalyzer(b, nil)
	samples := utils.GenerateComplexWave(testFFTSize, testSampleRate)
	bars := make([]float32, a.BarCount())

	b.ReportAllocs()
	for b.Loop() {
		_ = a.ComputeBars(samples, bars)
	}
}
