// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate is a peak noise gate. A frame whose absolute peak does not exceed
// the threshold is treated as silence. Safe for concurrent use.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Uint64 // float64 bits
}

// Enable turns the gate on.
func (g *Gate) Enable() { g.enabled.Store(true) }

// Disable turns the gate off; every frame passes.
func (g *Gate) Disable() { g.enabled.Store(false) }

// Enabled reports whether the gate is on.
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetThreshold adjusts the gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(math.Float64bits(threshold))
}

// Threshold returns the current threshold in 0.0-1.0.
func (g *Gate) Threshold() float64 {
	return math.Float64frombits(g.threshold.Load())
}

// Open reports whether frame should be analysed.
func (g *Gate) Open(frame []float32) bool {
	if !g.enabled.Load() {
		return true
	}
	return float64(Peak(frame)) > g.Threshold()
}

// Peak returns the largest absolute sample in frame.
func Peak(frame []float32) float32 {
	var peak float32
	for _, s := range frame {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

func (e *Engine) EnableGate() {
	e.gate.Enable()
}

func (e *Engine) DisableGate() {
	e.gate.Disable()
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	e.gate.SetThreshold(threshold)
}

// GetGateThreshold returns the current noise gate threshold as a float64.
func (e *Engine) GetGateThreshold() float64 {
	return e.gate.Threshold()
}
