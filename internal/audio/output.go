// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"audioviz/internal/config"

	"github.com/gordonklaus/portaudio"
	"github.com/hajimehoshi/oto/v2"
)

// outputStream is the part of a hardware stream the engine drives. Stop must
// not return while a fill callback is still running.
type outputStream interface {
	Start() error
	Stop() error
	Close() error
}

// streamOpener opens a mono float32 output stream that pulls blocks of
// framesPerBuffer samples from fill.
type streamOpener func(sampleRate float64, framesPerBuffer int, fill func(out []float32)) (outputStream, error)

// newStreamOpener picks the output backend named in the config.
func newStreamOpener(cfg *config.Config) (streamOpener, error) {
	switch cfg.Audio.Backend {
	case config.BackendPortAudio, "":
		return portaudioOpener(cfg.Audio.OutputDevice, cfg.Audio.LowLatency), nil
	case config.BackendOto:
		return otoOpener, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Audio.Backend)
	}
}

// portaudioOpener opens a callback stream on the configured
// output device. PortAudio must already be initialised.
func portaudioOpener(deviceID int, lowLatency bool) streamOpener {
	return func(sampleRate float64, framesPerBuffer int, fill func(out []float32)) (outputStream, error) {
		device, err := OutputDevice(deviceID)
		if err != nil {
			return nil, &PlaybackError{Kind: DeviceUnavailable, Err: err}
		}

		latency := device.DefaultHighOutputLatency
		if lowLatency {
			latency = device.DefaultLowOutputLatency
		}

		params := portaudio.StreamParameters{
			Input: portaudio.StreamDeviceParameters{
				Channels: 0, // No input device
				Device:   nil,
			},
			Output: portaudio.StreamDeviceParameters{
				Channels: 1,
				Device:   device,
				Latency:  latency,
			},
			FramesPerBuffer: framesPerBuffer,
			SampleRate:      sampleRate,
		}

		stream, err := portaudio.OpenStream(params, fill)
		if err != nil {
			return nil, &PlaybackError{Kind: StreamOpenFailed, Err: err}
		}
		return stream, nil
	}
}

// oto allows a single context per process, fixed to the first rate it is
// opened with.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoRate    int
	otoErr     error
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(sampleRate, 1, oto.FormatFloat32LE)
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoContext, otoRate = ctx, sampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if sampleRate != otoRate {
		return nil, fmt.Errorf("oto context runs at %d Hz, cannot play %d Hz", otoRate, sampleRate)
	}
	return otoContext, nil
}

func otoOpener(sampleRate float64, framesPerBuffer int, fill func(out []float32)) (outputStream, error) {
	ctx, err := sharedOtoContext(int(sampleRate))
	if err != nil {
		return nil, &PlaybackError{Kind: DeviceUnavailable, Err: err}
	}
	reader := newBlockReader(framesPerBuffer, fill)
	return &otoStream{player: ctx.NewPlayer(reader)}, nil
}

type otoStream struct {
	player oto.Player
}

func (s *otoStream) Start() error {
	s.player.Play()
	return s.player.Err()
}

func (s *otoStream) Stop() error {
	s.player.Pause()
	return nil
}

func (s *otoStream) Close() error {
	return s.player.Close()
}

// blockReader adapts a fill callback to the io.Reader oto pulls from. Each
// refill produces one block encoded as little-endian float32.
type blockReader struct {
	mu      sync.Mutex
	fill    func(out []float32)
	block   []float32
	raw     []byte
	pending []byte
}

func newBlockReader(framesPerBuffer int, fill func(out []float32)) *blockReader {
	return &blockReader{
		fill:  fill,
		block: make([]float32, framesPerBuffer),
		raw:   make([]byte, framesPerBuffer*4),
	}
}

func (r *blockReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		r.fill(r.block)
		for i, s := range r.block {
			binary.LittleEndian.PutUint32(r.raw[4*i:], math.Float32bits(s))
		}
		r.pending = r.raw
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
