// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"audioviz/internal/visual"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Frame time, ns since epoch |
| RMS               | float32        | 4            | Block loudness          |
| Beat              | uint8          | 1            | 1 on a beat block       |
| Value Count       | uint16         | 2            | Number of floats (N)    |
| Values            | []float32      | N * 4        | Bars, or waveform points|
+-----------------------------------------------------------------------------+

Waveform frames carry their trace in Values; every other style sends its
smoothed bars.
*/

const (
	headerSize = 4 + 8 + 4 + 1 + 2

	// MaxValues keeps a packet inside one UDP datagram.
	MaxValues = (65507 - headerSize) / 4
)

var ErrShortPacket = errors.New("udp: packet too short")

// Packet is a decoded frame packet.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	RMS       float32
	Beat      bool
	Values    []float32
}

// frameValues picks the series a frame publishes.
func frameValues(f *visual.Frame) []float64 {
	if len(f.Bars) == 0 && len(f.Waveform) > 0 {
		return f.Waveform
	}
	return f.Bars
}

// appendPacket encodes f after dst. Values beyond MaxValues are dropped.
func appendPacket(dst []byte, seq uint32, f *visual.Frame) []byte {
	values := frameValues(f)
	if len(values) > MaxValues {
		values = values[:MaxValues]
	}

	var beat uint8
	if f.Beat {
		beat = 1
	}

	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(f.Timestamp.UnixNano()))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(f.RMS)))
	dst = append(dst, beat)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(values)))
	for _, v := range values {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// DecodePacket parses one datagram.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}

	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
		RMS:       math.Float32frombits(binary.BigEndian.Uint32(b[12:16])),
		Beat:      b[16] != 0,
	}
	n := int(binary.BigEndian.Uint16(b[17:19]))
	payload := b[headerSize:]
	if len(payload) < n*4 {
		return Packet{}, fmt.Errorf("%w: %d values declared, %d bytes present", ErrShortPacket, n, len(payload))
	}

	p.Values = make([]float32, n)
	for i := range p.Values {
		p.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[4*i:]))
	}
	return p, nil
}
