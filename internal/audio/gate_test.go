// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"
)

func TestGateThresholdClamping(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{2, 1},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		var g Gate
		g.SetThreshold(tt.in)
		if got := g.Threshold(); got != tt.want {
			t.Errorf("SetThreshold(%v): Threshold() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGateOpen(t *testing.T) {
	quiet := []float32{0.001, -0.004, 0.002}
	loud := []float32{0.001, -0.5, 0.002}

	var g Gate
	if !g.Open(quiet) {
		t.Error("a disabled gate must pass every frame")
	}

	g.SetThreshold(0.01)
	g.Enable()
	if g.Open(quiet) {
		t.Error("quiet frame passed an enabled gate")
	}
	if !g.Open(loud) {
		t.Error("loud frame blocked")
	}

	// Negative peaks count by magnitude.
	if !g.Open([]float32{-0.02}) {
		t.Error("negative peak above threshold blocked")
	}

	g.SetThreshold(1)
	if g.Open([]float32{1, -1}) {
		t.Error("threshold 1 should block even full-scale frames")
	}

	g.Disable()
	if !g.Open(quiet) || g.Enabled() {
		t.Error("Disable did not open the gate")
	}
}

func TestPeak(t *testing.T) {
	tests := []struct {
		name  string
		frame []float32
		want  float32
	}{
		{"empty", nil, 0},
		{"positive", []float32{0.1, 0.7, 0.3}, 0.7},
		{"negative", []float32{0.1, -0.9, 0.3}, 0.9},
		{"silence", make([]float32, 8), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Peak(tt.frame); got != tt.want {
				t.Errorf("Peak() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeakNoAlloc(t *testing.T) {
	frame := make([]float32, 1024)
	allocs := testing.AllocsPerRun(100, func() {
		_ = Peak(frame)
	})
	if allocs != 0 {
		t.Errorf("Peak allocated %.0f times, want 0", allocs)
	}
}

func TestEngineGateControls(t *testing.T) {
	e := newTestEngine(t, &frameSource{}, nil, Options{})
	if e.gate.Enabled() {
		t.Fatal("gate should start disabled without a threshold")
	}

	e.SetGateThreshold(0.3)
	e.EnableGate()
	if got := e.GetGateThreshold(); got != 0.3 {
		t.Errorf("GetGateThreshold() = %v, want 0.3", got)
	}
	if !e.gate.Enabled() {
		t.Error("EnableGate had no effect")
	}
	e.DisableGate()
	if e.gate.Enabled() {
		t.Error("DisableGate had no effect")
	}

	e = newTestEngine(t, &frameSource{}, nil, Options{GateThreshold: 0.05})
	if !e.gate.Enabled() || e.GetGateThreshold() != 0.05 {
		t.Error("a positive GateThreshold option should enable the gate")
	}
}
