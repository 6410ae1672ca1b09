// SPDX-License-Identifier: MIT
package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Container formats the first strategy knows how to open.
const (
	formatUnknown = ""
	formatWAV     = "wav"
	formatAIFF    = "aiff"
	formatMP3     = "mp3"
	formatOgg     = "ogg"
)

var (
	ErrNotWavFile        = errors.New("not a WAV file")
	ErrNotAiffFile       = errors.New("not an AIFF file")
	ErrNonIntegerWav     = errors.New("WAV data is not integer PCM")
	ErrUnsupportedLayout = errors.New("unsupported channel layout")
)

// rawAudio is interleaved float32 PCM before downmixing.
type rawAudio struct {
	samples    []float32
	channels   int
	sampleRate int
}

// detectFormat picks a container from the file extension and falls back to
// sniffing the first bytes when the extension says nothing.
func detectFormat(path string, header []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return formatWAV
	case ".aif", ".aiff", ".aifc":
		return formatAIFF
	case ".mp3":
		return formatMP3
	case ".ogg", ".oga":
		return formatOgg
	}
	return sniffFormat(header)
}

func sniffFormat(header []byte) string {
	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return formatWAV
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("FORM")) &&
		(bytes.Equal(header[8:12], []byte("AIFF")) || bytes.Equal(header[8:12], []byte("AIFC"))):
		return formatAIFF
	case len(header) >= 4 && bytes.Equal(header[:4], []byte("OggS")):
		return formatOgg
	case len(header) >= 3 && bytes.Equal(header[:3], []byte("ID3")):
		return formatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		// MPEG frame sync
		return formatMP3
	}
	return formatUnknown
}

// decodeContainer is the first strategy: a proper decoder for each known
// container format.
func decodeContainer(_ context.Context, path string, header []byte, _ Options) (*rawAudio, error) {
	format := detectFormat(path, header)
	if format == formatUnknown {
		return nil, errNotApplicable
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case formatWAV:
		return decodeWAV(f)
	case formatAIFF:
		return decodeAIFF(f)
	case formatMP3:
		return decodeMP3(f)
	default:
		return decodeOgg(f)
	}
}

func decodeWAV(r io.ReadSeeker) (*rawAudio, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: format tag %d", ErrNonIntegerWav, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading wav data: %w", err)
	}

	return &rawAudio{
		samples:    intsToFloat(buf.Data, int(dec.BitDepth)),
		channels:   int(dec.NumChans),
		sampleRate: int(dec.SampleRate),
	}, nil
}

func decodeAIFF(r io.ReadSeeker) (*rawAudio, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil || format.NumChannels < 1 {
		return nil, ErrUnsupportedLayout
	}

	chunk := &goaudio.IntBuffer{Format: format, Data: make([]int, 4096)}
	var data []int
	for {
		n, err := dec.PCMBuffer(chunk)
		if n > 0 {
			data = append(data, chunk.Data[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading aiff data: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return &rawAudio{
		samples:    intsToFloat(data, int(dec.BitDepth)),
		channels:   format.NumChannels,
		sampleRate: format.SampleRate,
	}, nil
}

// decodeMP3 reads the whole stream. go-mp3 always produces 16-bit
// little-endian stereo.
func decodeMP3(r io.Reader) (*rawAudio, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("opening mp3 stream: %w", err)
	}
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("reading mp3 stream: %w", err)
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768.0
	}
	return &rawAudio{samples: samples, channels: 2, sampleRate: dec.SampleRate()}, nil
}

func decodeOgg(r io.Reader) (*rawAudio, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading ogg stream: %w", err)
	}
	return &rawAudio{samples: samples, channels: format.Channels, sampleRate: format.SampleRate}, nil
}

// intsToFloat scales go-audio integer samples to [-1, 1). 8-bit data is
// unsigned and centred on 128.
func intsToFloat(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	if bitDepth == 8 {
		for i, v := range data {
			out[i] = float32(v-128) / 128.0
		}
		return out
	}
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	scale := 1.0 / float32(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(v) * scale
	}
	return out
}
