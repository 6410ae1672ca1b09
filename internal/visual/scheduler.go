// SPDX-License-Identifier: MIT
package visual

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"audioviz/internal/log"
	"audioviz/internal/transport"
)

// Scheduler ticks the active style at its frame rate and keeps the latest
// frame for renderers. One goroutine runs Run; every other method is safe to
// call concurrently with it.
type Scheduler struct {
	src    Source
	styles []Style

	mu        sync.Mutex
	active    int
	latest    Frame
	seq       uint64
	transport transport.Transport

	switched chan struct{} // wakes Run to retune its ticker
	now      func() time.Time
}

// NewScheduler drives styles from src. The first style starts active. Style
// names must be unique.
func NewScheduler(src Source, styles ...Style) (*Scheduler, error) {
	if src == nil {
		return nil, fmt.Errorf("scheduler: source cannot be nil")
	}
	if len(styles) == 0 {
		return nil, fmt.Errorf("scheduler: at least one style is required")
	}
	seen := make(map[string]bool, len(styles))
	for _, s := range styles {
		if seen[s.Name()] {
			return nil, fmt.Errorf("scheduler: duplicate style %q", s.Name())
		}
		seen[s.Name()] = true
	}

	sch := &Scheduler{
		src:      src,
		styles:   styles,
		switched: make(chan struct{}, 1),
		now:      time.Now,
	}
	sch.latest = styles[0].Frame()
	sch.latest.Timestamp = sch.now()
	return sch, nil
}

// SetTransport publishes every frame to t from now on. nil disables
// publishing.
func (s *Scheduler) SetTransport(t transport.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
}

// Styles returns the style names in cycling order.
func (s *Scheduler) Styles() []string {
	names := make([]string, len(s.styles))
	for i, st := range s.styles {
		names[i] = st.Name()
	}
	return names
}

// Active returns the active style.
func (s *Scheduler) Active() Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.styles[s.active]
}

// SetActive switches to the named style. Its state carries on from where it
// was last ticked.
func (s *Scheduler) SetActive(name string) error {
	idx := slices.IndexFunc(s.styles, func(st Style) bool { return st.Name() == name })
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStyle, name)
	}
	s.activate(idx)
	return nil
}

// Next cycles to the following style and returns it.
func (s *Scheduler) Next() Style {
	s.mu.Lock()
	idx := (s.active + 1) % len(s.styles)
	s.mu.Unlock()

	s.activate(idx)
	return s.styles[idx]
}

func (s *Scheduler) activate(idx int) {
	s.mu.Lock()
	changed := s.active != idx
	s.active = idx
	s.mu.Unlock()

	if !changed {
		return
	}
	log.Debugf("Visual: active style %s", s.styles[idx].Name())
	select {
	case s.switched <- struct{}{}:
	default:
	}
}

// Tick advances the active style once and publishes its frame.
func (s *Scheduler) Tick() Frame {
	s.mu.Lock()
	style := s.styles[s.active]
	style.Process(s.src)

	s.seq++
	frame := style.Frame()
	frame.Seq = s.seq
	frame.Timestamp = s.now()
	s.latest = frame
	t := s.transport
	s.mu.Unlock()

	if t != nil {
		if err := t.Send(frame); err != nil {
			log.Debugf("Visual: publish frame %d: %v", frame.Seq, err)
		}
	}
	return frame
}

// Latest returns the most recent frame. Frames are never mutated after
// publication, so the caller may keep it.
func (s *Scheduler) Latest() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Run ticks until ctx is done, retuning the interval whenever the active
// style changes.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(frameInterval(s.Active().FPS()))
	defer ticker.Stop()

	log.Debugf("Visual: scheduler started with %s", s.Active().Name())
	for {
		select {
		case <-ctx.Done():
			log.Debug("Visual: scheduler stopped")
			return nil
		case <-s.switched:
			ticker.Reset(frameInterval(s.Active().FPS()))
		case <-ticker.C:
			s.Tick()
		}
	}
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = defaultSpectrumFPS
	}
	return time.Second / time.Duration(fps)
}
