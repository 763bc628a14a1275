// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
)

// ErrFrameSize is returned when a caller passes a frame of the wrong length.
var ErrFrameSize = errors.New("frame length does not match the source frame size")

// Source delivers fixed-size mono frames of float32 samples in [-1, 1].
//
// ReadFrame blocks until frame is full, the context is cancelled or the
// input is exhausted, in which case it returns io.EOF.
type Source interface {
	ReadFrame(ctx context.Context, frame []float32) error
	SampleRate() float64
	Close() error
}

// downmix averages interleaved channels into mono. dst must hold
// len(src)/channels samples.
func downmix(dst, src []float32, channels int) {
	if channels == 1 {
		copy(dst, src)
		return
	}
	scale := 1 / float32(channels)
	for i := range dst {
		var sum float32
		for _, s := range src[i*channels : (i+1)*channels] {
			sum += s
		}
		dst[i] = sum * scale
	}
}

func checkFrame(frame []float32, want int) error {
	if len(frame) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrFrameSize, len(frame), want)
	}
	return nil
}
