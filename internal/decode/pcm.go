// SPDX-License-Identifier: MIT
package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

const (
	waveFormatPCM        = 0x0001
	waveFormatIEEEFloat  = 0x0003
	waveFormatExtensible = 0xFFFE
)

var (
	ErrMissingFmtChunk  = errors.New("RIFF file has no fmt chunk")
	ErrMissingDataChunk = errors.New("RIFF file has no data chunk")
	ErrUnsupportedPCM   = errors.New("unsupported PCM encoding")
)

type waveFormat struct {
	tag        uint16
	channels   int
	sampleRate int
	bits       int
}

// decodePCM is the tolerant second strategy. It walks RIFF chunks in any
// order, skips unknown ones, accepts float data and a data chunk whose
// declared size runs past the end of the file.
func decodePCM(_ context.Context, path string, header []byte, _ Options) (*rawAudio, error) {
	if sniffFormat(header) != formatWAV {
		return nil, errNotApplicable
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseRIFF(data)
}

func parseRIFF(data []byte) (*rawAudio, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, ErrNotWavFile
	}

	var (
		format  *waveFormat
		payload []byte
	)
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		end := start + size
		if size < 0 || end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			f, err := parseFmtChunk(data[start:end])
			if err != nil {
				return nil, err
			}
			format = f
		case "data":
			payload = data[start:end]
		}

		// Chunks are word aligned.
		pos = end + (size & 1)
	}

	if format == nil {
		return nil, ErrMissingFmtChunk
	}
	if payload == nil {
		return nil, ErrMissingDataChunk
	}

	samples, err := pcmToFloat(payload, format)
	if err != nil {
		return nil, err
	}
	return &rawAudio{samples: samples, channels: format.channels, sampleRate: format.sampleRate}, nil
}

func parseFmtChunk(b []byte) (*waveFormat, error) {
	if len(b) < 16 {
		return nil, fmt.Errorf("%w: fmt chunk is %d bytes", ErrUnsupportedPCM, len(b))
	}
	f := &waveFormat{
		tag:        binary.LittleEndian.Uint16(b[0:2]),
		channels:   int(binary.LittleEndian.Uint16(b[2:4])),
		sampleRate: int(binary.LittleEndian.Uint32(b[4:8])),
		bits:       int(binary.LittleEndian.Uint16(b[14:16])),
	}
	// WAVE_FORMAT_EXTENSIBLE keeps the real tag in the sub-format GUID.
	if f.tag == waveFormatExtensible && len(b) >= 26 {
		f.tag = binary.LittleEndian.Uint16(b[24:26])
	}
	if f.channels < 1 {
		return nil, ErrUnsupportedLayout
	}
	return f, nil
}

func pcmToFloat(b []byte, f *waveFormat) ([]float32, error) {
	width := f.bits / 8
	if width == 0 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedPCM, f.bits)
	}
	n := len(b) / width
	out := make([]float32, n)

	switch {
	case f.tag == waveFormatPCM && f.bits == 8:
		for i := range n {
			out[i] = float32(int(b[i])-128) / 128.0
		}
	case f.tag == waveFormatPCM && f.bits == 16:
		for i := range n {
			out[i] = float32(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768.0
		}
	case f.tag == waveFormatPCM && f.bits == 24:
		for i := range n {
			p := b[3*i:]
			v := int32(uint32(p[0])<<8|uint32(p[1])<<16|uint32(p[2])<<24) >> 8
			out[i] = float32(v) / 8388608.0
		}
	case f.tag == waveFormatPCM && f.bits == 32:
		for i := range n {
			out[i] = float32(float64(int32(binary.LittleEndian.Uint32(b[4*i:]))) / 2147483648.0)
		}
	case f.tag == waveFormatIEEEFloat && f.bits == 32:
		for i := range n {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
	case f.tag == waveFormatIEEEFloat && f.bits == 64:
		for i := range n {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:])))
		}
	default:
		return nil, fmt.Errorf("%w: format tag %#x with %d bits", ErrUnsupportedPCM, f.tag, f.bits)
	}
	return out, nil
}
