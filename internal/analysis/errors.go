// SPDX-License-Identifier: MIT
package analysis

import "errors"

// Configuration errors. These are returned from Params.Validate and the
// constructors, wrapped with the offending value.
var (
	ErrFFTSize        = errors.New("fft size must be a power of 2 and at least 4")
	ErrBarCount       = errors.New("bar count must be positive")
	ErrSampleRate     = errors.New("sample rate must be positive")
	ErrFreqRange      = errors.New("invalid frequency range")
	ErrFloor          = errors.New("decibel floor must be negative")
	ErrUnknownWindow  = errors.New("unknown window function")
	ErrUnknownBackend = errors.New("unknown fft backend")
)

// Caller contract violations on the per-frame path.
var (
	ErrSampleLength = errors.New("sample buffer length does not match fft size")
	ErrBarsLength   = errors.New("bars buffer length does not match bar count")
)
