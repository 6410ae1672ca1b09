// SPDX-License-Identifier: MIT
/*
Package audio plays a decoded mono buffer through a hardware output stream
and feeds every delivered block to the analyzer.

Thread Safety:
  - State, cursor, volume and the loaded buffer are atomics read by the
    output callback without locks
  - Control calls (Play, Pause, Stop, Load) share one short-held mutex
  - The callback never allocates, logs or blocks; end of stream is handed to
    a watcher goroutine that tears the stream down
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"audioviz/internal/analysis"
	"audioviz/internal/config"
	"audioviz/internal/decode"
	"audioviz/internal/log"
)

// State is the playback state machine.
type State int32

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// session is one open output stream. The fill closure captures it, so a
// callback from a stream that is being torn down can recognise itself.
type session struct {
	stream   outputStream
	finished chan struct{} // end of stream, buffered 1
	done     chan struct{} // closed on teardown
	closed   atomic.Bool
}

type Engine struct {
	// Core configuration, read-only after NewEngine.
	config     *config.Config
	opener     streamOpener
	decodeOpts decode.Options
	analyzer   *analysis.Analyzer

	// Shared with the output callback.
	state    atomic.Int32
	cursor   atomic.Int64
	volume   atomic.Uint64 // float64 bits
	buffer   atomic.Pointer[decode.SampleBuffer]
	recorder atomic.Pointer[recorder]

	// Noise gate for the analysis input.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint32 // float32 bits of the peak threshold

	onFinished atomic.Pointer[func()]

	mu      sync.Mutex
	session *session
}

// NewEngine builds an engine for the configured backend. Nothing is opened
// until Play.
func NewEngine(cfg *config.Config) (*Engine, error) {
	opener, err := newStreamOpener(cfg)
	if err != nil {
		return nil, err
	}
	return newEngine(cfg, opener)
}

func newEngine(cfg *config.Config, opener streamOpener) (*Engine, error) {
	windowType, err := analysis.ParseWindowFunc(cfg.Analysis.FFTWindow)
	if err != nil {
		log.Warnf("Audio: %v, using %v", err, windowType)
	}

	analyzer, err := analysis.NewAnalyzer(
		cfg.Audio.FramesPerBuffer,
		float64(cfg.Audio.DemuxSampleRate),
		windowType,
		cfg.Analysis.BeatThreshold,
	)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:   cfg,
		opener:   opener,
		analyzer: analyzer,
		decodeOpts: decode.Options{
			NormalizeTarget: cfg.Audio.NormalizeTarget,
			FFmpegPath:      cfg.Audio.FFmpegPath,
			DemuxSampleRate: cfg.Audio.DemuxSampleRate,
		},
	}
	e.SetVolume(cfg.Audio.Volume)
	e.SetGateThreshold(cfg.Audio.GateThreshold)
	if cfg.Audio.GateThreshold > 0 {
		e.EnableGate()
	}
	return e, nil
}

// Load decodes path and swaps it in. Playback is stopped first; on error the
// previous buffer stays loaded.
func (e *Engine) Load(ctx context.Context, path string) error {
	buf, err := decode.Load(ctx, path, e.decodeOpts)
	if err != nil {
		return err
	}
	return e.SetBuffer(buf)
}

// SetBuffer stops playback and replaces the loaded buffer.
func (e *Engine) SetBuffer(buf *decode.SampleBuffer) error {
	if err := e.Stop(); err != nil {
		return err
	}
	e.buffer.Store(buf)
	if buf != nil {
		e.analyzer.SetSampleRate(float64(buf.SampleRate))
	}
	return nil
}

// Buffer returns the loaded buffer or nil.
func (e *Engine) Buffer() *decode.SampleBuffer {
	return e.buffer.Load()
}

// Play starts or resumes playback. With nothing loaded it logs a warning and
// does nothing.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.State() {
	case Playing:
		return nil
	case Paused:
		// The stream kept running on silence.
		if e.session != nil {
			e.state.Store(int32(Playing))
			return nil
		}
	}

	buf := e.buffer.Load()
	if buf.Len() == 0 {
		log.Warn("Audio: play requested with nothing loaded")
		return nil
	}

	// A stream that ran to the end may not have been reaped yet.
	if e.session != nil {
		e.teardownLocked()
	}

	sess := &session{
		finished: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	stream, err := e.opener(float64(buf.SampleRate), e.config.Audio.FramesPerBuffer, func(out []float32) {
		e.fill(sess, out)
	})
	if err != nil {
		var pe *PlaybackError
		if errors.As(err, &pe) {
			return pe
		}
		return &PlaybackError{Kind: StreamOpenFailed, Err: err}
	}
	sess.stream = stream

	e.state.Store(int32(Playing))
	if err := stream.Start(); err != nil {
		e.state.Store(int32(Stopped))
		if cerr := stream.Close(); cerr != nil {
			log.Warnf("Audio: closing failed stream: %v", cerr)
		}
		return &PlaybackError{Kind: StreamOpenFailed, Err: err}
	}

	e.session = sess
	go e.watch(sess)

	log.Debugf("Audio: playback started at %d Hz, %d frames per buffer",
		buf.SampleRate, e.config.Audio.FramesPerBuffer)
	return nil
}

// SetOutputDevice moves output to another PortAudio device. Playback that
// was running continues on the new device from the same position; a paused
// engine stays paused until Play.
func (e *Engine) SetOutputDevice(deviceID int) error {
	if e.config.Audio.Backend == config.BackendOto {
		return ErrNoDeviceChoice
	}
	if deviceID < config.MinDeviceID {
		return fmt.Errorf("invalid device ID: %d", deviceID)
	}

	e.mu.Lock()
	e.opener = portaudioOpener(deviceID, e.config.Audio.LowLatency)
	e.config.Audio.OutputDevice = deviceID

	prev := e.State()
	if e.session != nil {
		pos := e.cursor.Load()
		e.state.Store(int32(Stopped))
		e.teardownLocked()
		e.cursor.Store(pos)
		if prev == Paused {
			e.state.Store(int32(Paused))
		}
	}
	e.mu.Unlock()

	log.Infof("Audio: output device set to %d", deviceID)
	if prev == Playing {
		return e.Play()
	}
	return nil
}

// Pause suspends playback. The stream keeps running and outputs silence.
// Pausing while not Playing does nothing.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.CompareAndSwap(int32(Playing), int32(Paused))
}

// Stop halts playback, closes the stream, rewinds and clears the analysis.
// It returns after the last callback has finished.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Store(int32(Stopped))
	if e.session != nil {
		e.teardownLocked()
	}
	e.cursor.Store(0)
	e.analyzer.Reset()
	return nil
}

// teardownLocked closes the current session. e.mu must be held.
func (e *Engine) teardownLocked() {
	sess := e.session
	e.session = nil

	sess.closed.Store(true)
	close(sess.done)
	if err := sess.stream.Stop(); err != nil {
		log.Warnf("Audio: stopping stream: %v", err)
	}
	if err := sess.stream.Close(); err != nil {
		log.Warnf("Audio: closing stream: %v", err)
	}
}

// watch reaps a session that ran to the end of the buffer.
func (e *Engine) watch(sess *session) {
	select {
	case <-sess.finished:
	case <-sess.done:
		return
	}

	e.mu.Lock()
	if e.session == sess {
		e.teardownLocked()
	}
	e.mu.Unlock()

	log.Info("Audio: playback finished")
	if fn := e.onFinished.Load(); fn != nil {
		(*fn)()
	}
}

// OnFinished registers fn to run, off the audio thread, each time playback
// reaches the end of the buffer. nil clears it.
func (e *Engine) OnFinished(fn func()) {
	if fn == nil {
		e.onFinished.Store(nil)
		return
	}
	e.onFinished.Store(&fn)
}

// fill is the output callback.
// Performance Critical (Hot Path):
//   - No allocations, locks or logging
//   - The cursor only advances if no Seek or Stop moved it meanwhile
func (e *Engine) fill(sess *session, out []float32) {
	buf := e.buffer.Load()
	if sess.closed.Load() || State(e.state.Load()) != Playing || buf == nil {
		clear(out)
		return
	}

	samples := buf.Samples
	pos := int(e.cursor.Load())
	if pos > len(samples) {
		pos = len(samples)
	}

	n := copy(out, samples[pos:])
	vol := float32(e.Volume())
	for i := range n {
		out[i] *= vol
	}
	clear(out[n:])

	next := pos + n
	if !e.cursor.CompareAndSwap(int64(pos), int64(next)) {
		return
	}
	if n > 0 {
		e.deliver(out[:n])
	}

	if next >= len(samples) {
		if e.state.CompareAndSwap(int32(Playing), int32(Stopped)) {
			e.cursor.Store(0)
			select {
			case sess.finished <- struct{}{}:
			default:
			}
		}
	}
}

// deliver hands one written block to the analyzer and the recording tap.
func (e *Engine) deliver(block []float32) {
	if e.gateOpen(block) {
		e.analyzer.OnBlockDelivered(block)
	} else {
		e.analyzer.Reset()
	}
	if rec := e.recorder.Load(); rec != nil {
		rec.OnBlockDelivered(block)
	}
}

// Seek moves the cursor to fraction f of the buffer. f is clamped to [0, 1]
// and NaN counts as 0. Seeking with nothing loaded does nothing.
func (e *Engine) Seek(f float64) {
	buf := e.buffer.Load()
	if buf.Len() == 0 {
		return
	}
	if math.IsNaN(f) {
		f = 0
	}
	f = min(max(f, 0), 1)

	pos := int(math.Round(f * float64(buf.Len())))
	pos = min(max(pos, 0), buf.Len()-1)
	e.cursor.Store(int64(pos))
}

// SetVolume sets the output gain, clamped to [0, 1].
func (e *Engine) SetVolume(v float64) {
	if math.IsNaN(v) {
		v = 0
	}
	v = min(max(v, 0), 1)
	e.volume.Store(math.Float64bits(v))
}

// Volume returns the output gain.
func (e *Engine) Volume() float64 {
	return math.Float64frombits(e.volume.Load())
}

// State returns the playback state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Cursor returns the index of the next sample to play.
func (e *Engine) Cursor() int {
	return int(e.cursor.Load())
}

// CurrentTime returns the cursor position in seconds, 0 with nothing loaded.
func (e *Engine) CurrentTime() float64 {
	buf := e.buffer.Load()
	if buf == nil || buf.SampleRate <= 0 {
		return 0
	}
	return float64(e.cursor.Load()) / float64(buf.SampleRate)
}

// TotalTime returns the buffer length in seconds, 0 with nothing loaded.
func (e *Engine) TotalTime() float64 {
	return e.buffer.Load().Seconds()
}

// Analyzer exposes the analyzer for consumers that need more than the
// playback-gated queries below.
func (e *Engine) Analyzer() *analysis.Analyzer {
	return e.analyzer
}

// Spectrum returns n band levels, all zero unless Playing.
func (e *Engine) Spectrum(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if e.State() != Playing {
		return make([]float64, n)
	}
	return e.analyzer.Spectrum(n)
}

// RMS returns the last block's RMS, 0 unless Playing.
func (e *Engine) RMS() float64 {
	if e.State() != Playing {
		return 0
	}
	return e.analyzer.RMS()
}

// IsBeat reports the last block's beat flag, false unless Playing.
func (e *Engine) IsBeat() bool {
	if e.State() != Playing {
		return false
	}
	return e.analyzer.IsBeat()
}

// BandLevels returns the named band levels, all zero unless Playing.
func (e *Engine) BandLevels() []analysis.BandLevel {
	if e.State() != Playing {
		levels := make([]analysis.BandLevel, len(analysis.NamedBands))
		for i, b := range analysis.NamedBands {
			levels[i].FrequencyBand = b
		}
		return levels
	}
	return e.analyzer.BandLevels()
}

// Waveform returns n raw samples around the cursor: a window of up to n
// samples starting n/2 before it, stretched to exactly n points by
// nearest-index sampling. All zero unless Playing.
func (e *Engine) Waveform(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)

	buf := e.buffer.Load()
	if buf == nil || e.State() != Playing {
		return out
	}

	samples := buf.Samples
	pos := int(e.cursor.Load())
	start := max(0, pos-n/2)
	end := min(len(samples), start+n)
	if start >= end {
		return out
	}
	window := samples[start:end]

	m := len(window)
	if m == n {
		for i, s := range window {
			out[i] = float64(s)
		}
		return out
	}
	if n == 1 {
		out[0] = float64(window[0])
		return out
	}
	for i := range n {
		idx := int(float64(i) * float64(m-1) / float64(n-1))
		out[i] = float64(window[idx])
	}
	return out
}

// Close stops playback and any recording.
func (e *Engine) Close() error {
	var errs []error
	if err := e.StopRecording(); err != nil {
		errs = append(errs, err)
	}
	if err := e.Stop(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
