// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"audioviz/internal/config"
	"audioviz/internal/decode"
	"audioviz/internal/log"
	"audioviz/pkg/utils"
)

const testFrames = 256

func init() {
	log.SetOutput(io.Discard)
}

type fakeStream struct {
	fill     func([]float32)
	startErr error
	started  atomic.Int32
	stopped  atomic.Int32
	closed   atomic.Int32
}

func (s *fakeStream) Start() error {
	s.started.Add(1)
	return s.startErr
}

func (s *fakeStream) Stop() error {
	s.stopped.Add(1)
	return nil
}

func (s *fakeStream) Close() error {
	s.closed.Add(1)
	return nil
}

// fakeOpener records every stream the engine opens.
type fakeOpener struct {
	mu       sync.Mutex
	streams  []*fakeStream
	openErr  error
	startErr error
}

func (f *fakeOpener) open(sampleRate float64, framesPerBuffer int, fill func([]float32)) (outputStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := &fakeStream{fill: fill, startErr: f.startErr}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeOpener) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *fakeOpener) last() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

func newTestEngine(t testing.TB) (*Engine, *fakeOpener) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Audio.FramesPerBuffer = testFrames
	cfg.Audio.Volume = 1
	cfg.Recording.OutputDir = t.TempDir()

	opener := &fakeOpener{}
	e, err := newEngine(cfg, opener.open)
	if err != nil {
		t.Fatalf("newEngine error: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, opener
}

func loadSine(t testing.TB, e *Engine, n int) *decode.SampleBuffer {
	t.Helper()
	buf := decode.NewSampleBuffer(utils.GenerateSineWave(n, 44100, 440, 0.8), 44100)
	if err := e.SetBuffer(buf); err != nil {
		t.Fatalf("SetBuffer error: %v", err)
	}
	return buf
}

func mustPlay(t testing.TB, e *Engine, opener *fakeOpener) *fakeStream {
	t.Helper()
	if err := e.Play(); err != nil {
		t.Fatalf("Play error: %v", err)
	}
	s := opener.last()
	if s == nil {
		t.Fatal("Play did not open a stream")
	}
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPlay_NothingLoaded(t *testing.T) {
	e, opener := newTestEngine(t)

	if err := e.Play(); err != nil {
		t.Fatalf("Play with nothing loaded = %v, want nil", err)
	}
	if e.State() != Stopped {
		t.Errorf("state = %v, want stopped", e.State())
	}
	if opener.count() != 0 {
		t.Errorf("opened %d streams with nothing loaded", opener.count())
	}
	if e.TotalTime() != 0 || e.CurrentTime() != 0 {
		t.Errorf("times with nothing loaded: %g / %g", e.CurrentTime(), e.TotalTime())
	}
}

func TestTotalTimeAndSeek(t *testing.T) {
	e, _ := newTestEngine(t)
	buf := loadSine(t, e, 44100)

	if got := e.TotalTime(); got != 1.0 {
		t.Errorf("TotalTime = %g, want 1", got)
	}

	tests := []struct {
		name   string
		f      float64
		cursor int
	}{
		{"Half", 0.5, 22050},
		{"Start", 0, 0},
		{"Negative", -3, 0},
		{"NaN", math.NaN(), 0},
		{"End", 1, buf.Len() - 1},
		{"Past end", 7, buf.Len() - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.Seek(tt.f)
			if e.Cursor() != tt.cursor {
				t.Errorf("Seek(%g) cursor = %d, want %d", tt.f, e.Cursor(), tt.cursor)
			}
		})
	}

	e.Seek(0.25)
	if got := e.CurrentTime(); math.Abs(got-0.25) > 1.0/44100 {
		t.Errorf("CurrentTime after Seek(0.25) = %g", got)
	}
}

func TestPlayback_FillsBlocks(t *testing.T) {
	e, opener := newTestEngine(t)
	buf := loadSine(t, e, 44100)
	e.SetVolume(0.5)

	s := mustPlay(t, e, opener)
	if e.State() != Playing || s.started.Load() != 1 {
		t.Fatalf("state = %v, started = %d", e.State(), s.started.Load())
	}

	out := make([]float32, testFrames)
	s.fill(out)
	for i, v := range out {
		if want := buf.Samples[i] * 0.5; math.Abs(float64(v-want)) > 1e-6 {
			t.Fatalf("out[%d] = %g, want %g", i, v, want)
		}
	}
	if e.Cursor() != testFrames {
		t.Errorf("cursor = %d, want %d", e.Cursor(), testFrames)
	}
	if e.RMS() <= 0 {
		t.Error("RMS not updated from delivered block")
	}

	// Play while playing is a no-op.
	if err := e.Play(); err != nil || opener.count() != 1 {
		t.Errorf("second Play: err=%v, streams=%d", err, opener.count())
	}
}

func TestPause(t *testing.T) {
	e, opener := newTestEngine(t)
	loadSine(t, e, 44100)
	s := mustPlay(t, e, opener)

	out := make([]float32, testFrames)
	s.fill(out)

	e.Pause()
	e.Pause()
	if e.State() != Paused {
		t.Fatalf("state = %v, want paused", e.State())
	}

	s.fill(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("paused out[%d] = %g, want silence", i, v)
		}
	}
	if e.Cursor() != testFrames {
		t.Errorf("cursor moved while paused: %d", e.Cursor())
	}
	if e.RMS() != 0 || e.IsBeat() {
		t.Error("analysis visible while paused")
	}

	if err := e.Play(); err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if opener.count() != 1 {
		t.Errorf("resume opened a new stream: %d", opener.count())
	}
	s.fill(out)
	if e.Cursor() != 2*testFrames {
		t.Errorf("cursor after resume = %d, want %d", e.Cursor(), 2*testFrames)
	}
}

func TestPause_WhenStopped(t *testing.T) {
	e, _ := newTestEngine(t)
	loadSine(t, e, 1000)
	e.Pause()
	if e.State() != Stopped {
		t.Errorf("Pause from stopped changed state to %v", e.State())
	}
}

func TestEndOfStream(t *testing.T) {
	e, opener := newTestEngine(t)
	buf := loadSine(t, e, 1000)

	finished := make(chan struct{}, 1)
	e.OnFinished(func() { finished <- struct{}{} })

	s := mustPlay(t, e, opener)
	e.Seek(0.99)
	start := e.Cursor()
	if start != 990 {
		t.Fatalf("cursor after Seek(0.99) = %d, want 990", start)
	}

	out := make([]float32, testFrames)
	for i := range out {
		out[i] = 1
	}
	s.fill(out)

	tail := buf.Len() - start
	for i := range tail {
		if out[i] != buf.Samples[start+i] {
			t.Fatalf("out[%d] = %g, want %g", i, out[i], buf.Samples[start+i])
		}
	}
	for i := tail; i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("out[%d] = %g, want zero padding", i, out[i])
		}
	}
	if e.State() != Stopped {
		t.Errorf("state = %v, want stopped", e.State())
	}
	if e.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", e.Cursor())
	}

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("OnFinished not called")
	}
	waitFor(t, "stream close", func() bool { return s.closed.Load() == 1 })

	// Further callbacks from the dying stream write silence.
	s.fill(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %g after end of stream", i, v)
		}
	}

	// Playing again opens a fresh stream from the start.
	s2 := mustPlay(t, e, opener)
	if s2 == s {
		t.Fatal("expected a new stream")
	}
	s2.fill(out)
	if e.Cursor() != testFrames {
		t.Errorf("cursor = %d, want %d", e.Cursor(), testFrames)
	}
}

func TestStop(t *testing.T) {
	e, opener := newTestEngine(t)
	loadSine(t, e, 44100)
	s := mustPlay(t, e, opener)

	out := make([]float32, testFrames)
	s.fill(out)
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if e.Cursor() != 0 || e.State() != Stopped {
		t.Errorf("after Stop: cursor=%d state=%v", e.Cursor(), e.State())
	}
	if s.stopped.Load() != 1 || s.closed.Load() != 1 {
		t.Errorf("stream stop/close = %d/%d, want 1/1", s.stopped.Load(), s.closed.Load())
	}
	if e.Analyzer().RMS() != 0 {
		t.Error("analysis not reset on Stop")
	}

	s.fill(out)
	if e.Cursor() != 0 {
		t.Errorf("stale callback moved cursor to %d", e.Cursor())
	}
}

func TestPlay_Errors(t *testing.T) {
	t.Run("Open fails", func(t *testing.T) {
		e, opener := newTestEngine(t)
		loadSine(t, e, 1000)
		opener.openErr = errors.New("no backend")

		err := e.Play()
		if !errors.Is(err, ErrStreamOpenFailed) {
			t.Fatalf("Play = %v, want ErrStreamOpenFailed", err)
		}
		if e.State() != Stopped {
			t.Errorf("state = %v, want stopped", e.State())
		}
	})

	t.Run("Device unavailable passes through", func(t *testing.T) {
		e, opener := newTestEngine(t)
		loadSine(t, e, 1000)
		opener.openErr = &PlaybackError{Kind: DeviceUnavailable, Err: errors.New("unplugged")}

		err := e.Play()
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Fatalf("Play = %v, want ErrDeviceUnavailable", err)
		}
	})

	t.Run("Start fails", func(t *testing.T) {
		e, opener := newTestEngine(t)
		loadSine(t, e, 1000)
		opener.startErr = errors.New("busy")

		err := e.Play()
		var pe *PlaybackError
		if !errors.As(err, &pe) || pe.Kind != StreamOpenFailed {
			t.Fatalf("Play = %v, want StreamOpenFailed", err)
		}
		if e.State() != Stopped {
			t.Errorf("state = %v, want stopped", e.State())
		}
		if opener.last().closed.Load() != 1 {
			t.Error("failed stream not closed")
		}
	})
}

func TestLoad_KeepsPreviousBufferOnError(t *testing.T) {
	e, _ := newTestEngine(t)
	buf := loadSine(t, e, 1000)

	err := e.Load(t.Context(), "does-not-exist.wav")
	if !errors.Is(err, decode.ErrUnreadable) {
		t.Fatalf("Load = %v, want ErrUnreadable", err)
	}
	if e.Buffer() != buf {
		t.Error("failed load replaced the buffer")
	}
}

func TestSetVolume(t *testing.T) {
	e, _ := newTestEngine(t)
	tests := []struct{ in, want float64 }{
		{0.3, 0.3},
		{-1, 0},
		{2, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		e.SetVolume(tt.in)
		if got := e.Volume(); got != tt.want {
			t.Errorf("SetVolume(%g) -> %g, want %g", tt.in, got, tt.want)
		}
	}
}

func TestQueries_ZeroUnlessPlaying(t *testing.T) {
	e, opener := newTestEngine(t)
	loadSine(t, e, 44100)

	for _, v := range e.Spectrum(16) {
		if v != 0 {
			t.Fatalf("spectrum non-zero while stopped: %v", e.Spectrum(16))
		}
	}
	for _, v := range e.Waveform(32) {
		if v != 0 {
			t.Fatalf("waveform non-zero while stopped")
		}
	}
	for _, b := range e.BandLevels() {
		if b.Level != 0 || b.Name == "" {
			t.Fatalf("band levels while stopped: %+v", e.BandLevels())
		}
	}

	s := mustPlay(t, e, opener)
	s.fill(make([]float32, testFrames))

	spectrum := e.Spectrum(16)
	if len(spectrum) != 16 {
		t.Fatalf("len(Spectrum(16)) = %d", len(spectrum))
	}
	var nonZero bool
	for _, v := range spectrum {
		if v < 0 || v > 1 {
			t.Errorf("level %g out of [0,1]", v)
		}
		nonZero = nonZero || v > 0
	}
	if !nonZero {
		t.Error("spectrum all zero while playing a sine")
	}
	if len(e.Spectrum(0)) != 0 || len(e.Waveform(-1)) != 0 {
		t.Error("non-positive sizes should give empty results")
	}
}

func TestSilence_RMSZero(t *testing.T) {
	e, opener := newTestEngine(t)
	if err := e.SetBuffer(decode.NewSampleBuffer(utils.GenerateSilence(4096), 44100)); err != nil {
		t.Fatal(err)
	}
	s := mustPlay(t, e, opener)
	s.fill(make([]float32, testFrames))

	if e.RMS() != 0 || e.IsBeat() {
		t.Errorf("silence: rms=%g beat=%v", e.RMS(), e.IsBeat())
	}
}

func TestWaveform(t *testing.T) {
	e, opener := newTestEngine(t)
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = float32(i) / 1000
	}
	if err := e.SetBuffer(decode.NewSampleBuffer(samples, 44100)); err != nil {
		t.Fatal(err)
	}
	s := mustPlay(t, e, opener)
	s.fill(make([]float32, testFrames))
	e.Seek(0.5) // cursor 500

	w := e.Waveform(100)
	if len(w) != 100 {
		t.Fatalf("len = %d", len(w))
	}
	if math.Abs(w[0]-0.45) > 1e-6 || math.Abs(w[99]-0.549) > 1e-6 {
		t.Errorf("window = [%g .. %g], want [0.45 .. 0.549]", w[0], w[99])
	}

	// Near the end the window shrinks and is stretched to n points.
	e.Seek(1)
	w = e.Waveform(100)
	if len(w) != 100 {
		t.Fatalf("len = %d", len(w))
	}
	if math.Abs(w[0]-0.949) > 1e-6 || math.Abs(w[99]-0.999) > 1e-6 {
		t.Errorf("stretched window = [%g .. %g], want [0.949 .. 0.999]", w[0], w[99])
	}
	for i := 1; i < len(w); i++ {
		if w[i] < w[i-1] {
			t.Fatalf("stretched window not monotone at %d", i)
		}
	}
}

func TestFill_ZeroAllocations(t *testing.T) {
	e, opener := newTestEngine(t)
	loadSine(t, e, 1<<20)
	s := mustPlay(t, e, opener)

	out := make([]float32, testFrames)
	allocs := testing.AllocsPerRun(100, func() {
		s.fill(out)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in fill, got %.1f", allocs)
	}
}

func BenchmarkFill(b *testing.B) {
	e, opener := newTestEngine(b)
	loadSine(b, e, 1<<20)
	s := mustPlay(b, e, opener)

	out := make([]float32, testFrames)
	b.ReportAllocs()
	for b.Loop() {
		s.fill(out)
		if e.Cursor() > 1<<19 {
			e.Seek(0)
		}
	}
}

func TestSetOutputDevice(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.SetOutputDevice(-5); err == nil {
		t.Error("invalid device ID accepted")
	}

	e.config.Audio.Backend = config.BackendOto
	if err := e.SetOutputDevice(1); !errors.Is(err, ErrNoDeviceChoice) {
		t.Errorf("oto SetOutputDevice = %v, want ErrNoDeviceChoice", err)
	}
}
