// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BytesPerBar is the encoded size of one bar.
const BytesPerBar = 4

// EncodeBars appends bars to dst as little-endian IEEE-754 float32 values,
// the layout browsers read with a Float32Array. It does not allocate when
// dst has enough capacity.
func EncodeBars(dst []byte, bars []float32) []byte {
	for _, v := range bars {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodeBars parses a frame produced by EncodeBars.
func DecodeBars(b []byte) ([]float32, error) {
	if len(b)%BytesPerBar != 0 {
		return nil, fmt.Errorf("bar frame length %d is not a multiple of %d", len(b), BytesPerBar)
	}
	out := make([]float32, len(b)/BytesPerBar)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*BytesPerBar:]))
	}
	return out, nil
}
