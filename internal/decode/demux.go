// SPDX-License-Identifier: MIT
package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// lookPath is swapped in tests so the fallback can be forced off.
var lookPath = exec.LookPath

// decodeDemux is the last resort: anything ffmpeg can read is piped out as
// mono 32-bit float at the configured rate.
func decodeDemux(ctx context.Context, path string, _ []byte, opts Options) (*rawAudio, error) {
	if opts.FFmpegPath == "" {
		return nil, errNotApplicable
	}
	bin, err := lookPath(opts.FFmpegPath)
	if err != nil {
		return nil, errNotApplicable
	}

	rate := opts.DemuxSampleRate
	if rate <= 0 {
		rate = DefaultDemuxSampleRate
	}

	cmd := exec.CommandContext(ctx, bin,
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(rate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg decode %s: %w: %s", path, err, msg)
		}
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	samples := make([]float32, len(out)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
	}
	return &rawAudio{samples: samples, channels: 1, sampleRate: rate}, nil
}
