// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"audioviz/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recorderQueueDepth is how many blocks may wait for the writer before the
// callback starts dropping.
const recorderQueueDepth = 64

// recorder copies played blocks into preallocated buffers and writes them to
// a WAV file from its own goroutine.
type recorder struct {
	path     string
	file     *os.File
	encoder  *wav.Encoder
	bitDepth int

	free    chan []float32 // recycled block buffers
	blocks  chan []float32 // filled blocks, never closed
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64

	werr error // first write error, owned by the writer goroutine
}

func newRecorder(path string, sampleRate, bitDepth, framesPerBuffer int) (*recorder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported recording bit depth: %d", bitDepth)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &recorder{
		path:     path,
		file:     file,
		encoder:  wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		bitDepth: bitDepth,
		free:     make(chan []float32, recorderQueueDepth),
		blocks:   make(chan []float32, recorderQueueDepth),
		done:     make(chan struct{}),
	}
	for range recorderQueueDepth {
		r.free <- make([]float32, framesPerBuffer)
	}

	r.wg.Add(1)
	go r.run(sampleRate, framesPerBuffer)
	return r, nil
}

// OnBlockDelivered is called from the audio callback.
// Performance Critical (Hot Path):
//   - Never blocks; with no free buffer the block is counted and dropped
func (r *recorder) OnBlockDelivered(block []float32) {
	var buf []float32
	select {
	case buf = <-r.free:
	default:
		r.dropped.Add(1)
		return
	}
	if cap(buf) < len(block) {
		// Longer than the configured block; give the buffer back.
		r.free <- buf
		r.dropped.Add(1)
		return
	}
	buf = buf[:len(block)]
	copy(buf, block)
	select {
	case r.blocks <- buf:
	default:
		r.free <- buf
		r.dropped.Add(1)
	}
}

func (r *recorder) run(sampleRate, framesPerBuffer int) {
	defer r.wg.Done()

	scale := float64(int(1)<<(r.bitDepth-1) - 1)
	ib := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, framesPerBuffer),
		SourceBitDepth: r.bitDepth,
	}

	write := func(block []float32) {
		if cap(ib.Data) < len(block) {
			ib.Data = make([]int, len(block))
		}
		ib.Data = ib.Data[:len(block)]
		for i, s := range block {
			v := math.Max(-1, math.Min(1, float64(s)))
			ib.Data[i] = int(math.Round(v * scale))
		}
		r.free <- block[:cap(block)]
		if r.werr != nil {
			return
		}
		if err := r.encoder.Write(ib); err != nil {
			r.werr = err
		}
	}

	for {
		select {
		case block := <-r.blocks:
			write(block)
		case <-r.done:
			for {
				select {
				case block := <-r.blocks:
					write(block)
				default:
					return
				}
			}
		}
	}
}

// close drains queued blocks and finalises the WAV header.
func (r *recorder) close() error {
	close(r.done)
	r.wg.Wait()

	var errs []error
	if r.werr != nil {
		errs = append(errs, fmt.Errorf("failed to write recording: %w", r.werr))
	}
	if err := r.encoder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to finalise recording: %w", err))
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if n := r.dropped.Load(); n > 0 {
		log.Warnf("Audio: recording %s dropped %d blocks", r.path, n)
	}
	return errors.Join(errs...)
}

// StartRecording taps every block played from now on into a mono WAV file at
// path. An empty path writes a timestamped file under the configured
// recording directory.
func (e *Engine) StartRecording(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}
	buf := e.buffer.Load()
	if buf.Len() == 0 {
		return ErrNothingLoaded
	}
	if path == "" {
		path = filepath.Join(e.config.Recording.OutputDir,
			fmt.Sprintf("audioviz-%s.wav", time.Now().Format("20060102-150405")))
	}

	rec, err := newRecorder(path, buf.SampleRate, e.config.Recording.BitDepth, e.config.Audio.FramesPerBuffer)
	if err != nil {
		return err
	}
	e.recorder.Store(rec)
	log.Infof("Audio: recording to %s", path)
	return nil
}

// StopRecording finalises the current recording. It does nothing when no
// recording is active.
func (e *Engine) StopRecording() error {
	e.mu.Lock()
	rec := e.recorder.Swap(nil)
	e.mu.Unlock()

	if rec == nil {
		return nil
	}
	return rec.close()
}

// IsRecording reports whether the recording tap is active.
func (e *Engine) IsRecording() bool {
	return e.recorder.Load() != nil
}
