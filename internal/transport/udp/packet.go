// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"fmt"
	"math"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Bar Count         | uint16         | 2            | Number of floats (N)    |
| Bars              | []float32      | N * 4        | Normalised bar values   |
+-----------------------------------------------------------------------------+

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Bar Count   |          Bars           |
|      (uint32)     |        (int64)        |    (uint16)   |      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the fixed number of bytes before the bar payload.
const HeaderSize = 4 + 8 + 2

// MaxBars is the largest bar count the header can describe.
const MaxBars = math.MaxUint16

// Packet is a decoded UDP packet.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Bars      []float32
}

// AppendPacket appends an encoded packet to dst. It does not allocate when
// dst has HeaderSize+4*len(bars) spare capacity.
func AppendPacket(dst []byte, seq uint32, timestamp int64, bars []float32) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(bars)))
	for _, v := range bars {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// ParsePacket decodes a packet built by AppendPacket.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("packet too short: %d bytes", len(b))
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
	}
	count := int(binary.BigEndian.Uint16(b[12:14]))
	payload := b[HeaderSize:]
	if len(payload) != count*4 {
		return Packet{}, fmt.Errorf("packet declares %d bars but carries %d bytes", count, len(payload))
	}
	p.Bars = make([]float32, count)
	for i := range p.Bars {
		p.Bars[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[i*4:]))
	}
	return p, nil
}
