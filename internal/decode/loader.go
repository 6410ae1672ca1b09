// SPDX-License-Identifier: MIT
package decode

import (
	"context"
	"errors"
	"io"
	"math"
	"os"

	"audioviz/internal/log"
)

const (
	DefaultNormalizeTarget = 0.9
	DefaultFFmpegPath      = "ffmpeg"
	DefaultDemuxSampleRate = 44100

	sniffLength = 12
)

// Options tune how a file is turned into a SampleBuffer.
type Options struct {
	// NormalizeTarget is the peak absolute value after normalisation.
	NormalizeTarget float64
	// FFmpegPath names the ffmpeg binary. Empty disables the demux fallback.
	FFmpegPath string
	// DemuxSampleRate is the rate ffmpeg resamples to.
	DemuxSampleRate int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		NormalizeTarget: DefaultNormalizeTarget,
		FFmpegPath:      DefaultFFmpegPath,
		DemuxSampleRate: DefaultDemuxSampleRate,
	}
}

type strategy struct {
	name   string
	decode func(ctx context.Context, path string, header []byte, opts Options) (*rawAudio, error)
}

// strategies run in order and the first success wins.
var strategies = []strategy{
	{name: "container", decode: decodeContainer},
	{name: "pcm", decode: decodePCM},
	{name: "demux", decode: decodeDemux},
}

// Load decodes path into a mono buffer normalised to opts.NormalizeTarget.
// Failures are reported as *LoadError.
func Load(ctx context.Context, path string, opts Options) (*SampleBuffer, error) {
	header, err := readHeader(path)
	if err != nil {
		return nil, &LoadError{Kind: Unreadable, Path: path, Err: err}
	}

	var (
		attempted bool
		errs      []error
	)
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, &LoadError{Kind: Unreadable, Path: path, Err: err}
		}

		raw, err := s.decode(ctx, path, header, opts)
		if errors.Is(err, errNotApplicable) {
			continue
		}
		attempted = true
		if err != nil {
			log.Debugf("decode: %s strategy failed for %s: %v", s.name, path, err)
			errs = append(errs, err)
			continue
		}

		mono := downmix(raw.samples, raw.channels)
		if len(mono) == 0 {
			return nil, &LoadError{Kind: Empty, Path: path}
		}
		normalize(mono, opts.NormalizeTarget)

		log.Infof("decode: loaded %s via %s (%d samples, %d Hz, %d ch)",
			path, s.name, len(mono), raw.sampleRate, raw.channels)
		return NewSampleBuffer(mono, raw.sampleRate), nil
	}

	if !attempted {
		return nil, &LoadError{Kind: UnsupportedFormat, Path: path}
	}
	return nil, &LoadError{Kind: Unreadable, Path: path, Err: errors.Join(errs...)}
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, sniffLength)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return header[:n], nil
}

// downmix averages interleaved channels into one. A trailing partial frame
// is dropped.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	inv := 1 / float32(channels)
	for i := range frames {
		var sum float32
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += s
		}
		mono[i] = sum * inv
	}
	return mono
}

// normalize scales samples in place so the largest magnitude equals target.
// Silence is left untouched.
func normalize(samples []float32, target float64) {
	if target <= 0 {
		return
	}
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	gain := float32(target / peak)
	for i := range samples {
		samples[i] *= gain
	}
}
