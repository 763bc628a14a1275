// SPDX-License-Identifier: MIT
package analysis

// FrameProcessor consumes one captured frame at a time. Implementations are
// called from the capture loop and should not allocate per frame.
type FrameProcessor interface {
	Process(samples []float32) error
}

// BarsProvider exposes the most recent bars to readers running on their own
// cadence (publishers, UIs). This decouples them from the capture loop.
type BarsProvider interface {
	GetBarsInto(dst []float32) error // GetBarsInto copies the latest bars into dst.
	BarCount() int                   // BarCount returns the number of bars per frame.
}
