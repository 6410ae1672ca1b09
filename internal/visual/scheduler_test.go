// SPDX-License-Identifier: MIT
package visual

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"audioviz/internal/log"
	"audioviz/pkg/utils"
)

func init() {
	log.SetOutput(io.Discard)
}

func newTestScheduler(t *testing.T, src Source) *Scheduler {
	t.Helper()
	s, err := NewScheduler(src, newTestSpectrum(), NewCircular(), NewWaveform())
	if err != nil {
		t.Fatalf("NewScheduler error: %v", err)
	}
	return s
}

func TestNewScheduler_Errors(t *testing.T) {
	if _, err := NewScheduler(nil, NewCircular()); err == nil {
		t.Error("nil source accepted")
	}
	if _, err := NewScheduler(&fakeSource{}); err == nil {
		t.Error("empty style list accepted")
	}
	if _, err := NewScheduler(&fakeSource{}, NewCircular(), NewCircular()); err == nil {
		t.Error("duplicate styles accepted")
	}
}

func TestScheduler_TickPublishes(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{level: 0.5, rms: 0.4})
	stamp := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	mock := &utils.MockTransport{}
	s.SetTransport(mock)

	first := s.Tick()
	second := s.Tick()
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("seq = %d, %d; want 1, 2", first.Seq, second.Seq)
	}
	if !second.Timestamp.Equal(stamp) || second.Style != StyleSpectrum {
		t.Errorf("frame = %+v", second)
	}

	latest := s.Latest()
	if latest.Seq != 2 {
		t.Errorf("Latest().Seq = %d, want 2", latest.Seq)
	}

	frames := mock.Frames()
	if len(frames) != 2 {
		t.Fatalf("transport got %d frames, want 2", len(frames))
	}
	if f, ok := mock.Last().(Frame); !ok || f.Seq != 2 {
		t.Errorf("last published = %#v", mock.Last())
	}

	s.SetTransport(nil)
	s.Tick()
	if len(mock.Frames()) != 2 {
		t.Error("published after transport was removed")
	}
}

func TestScheduler_Switching(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{})

	if got := s.Styles(); len(got) != 3 || got[0] != StyleSpectrum {
		t.Errorf("Styles() = %v", got)
	}
	if s.Active().Name() != StyleSpectrum {
		t.Errorf("initial style = %s", s.Active().Name())
	}
	if got := s.Next().Name(); got != StyleCircular {
		t.Errorf("Next() = %s, want circular", got)
	}
	if err := s.SetActive(StyleWaveform); err != nil {
		t.Fatal(err)
	}
	if f := s.Tick(); f.Style != StyleWaveform {
		t.Errorf("ticked %s, want waveform", f.Style)
	}
	if got := s.Next().Name(); got != StyleSpectrum {
		t.Errorf("Next() wrapped to %s, want spectrum", got)
	}
	if err := s.SetActive("laser"); !errors.Is(err, ErrUnknownStyle) {
		t.Errorf("SetActive(laser) = %v", err)
	}
}

func TestScheduler_Run(t *testing.T) {
	src := &fakeSource{level: 0.3}
	s := newTestScheduler(t, src)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Latest().Seq < 3 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Switching while running retunes the ticker.
	if err := s.SetActive(StyleWaveform); err != nil {
		t.Fatal(err)
	}
	for s.Latest().Style != StyleWaveform {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not switch style")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestFrameInterval(t *testing.T) {
	if got := frameInterval(30); got != time.Second/30 {
		t.Errorf("frameInterval(30) = %s", got)
	}
	if got := frameInterval(0); got != time.Second/60 {
		t.Errorf("frameInterval(0) = %s", got)
	}
}
