// SPDX-License-Identifier: MIT
/*
Package visual turns engine analysis into per-tick frames for renderers.

Each Style owns its smoothing state and is driven by a Scheduler at the
style's own frame rate. Styles are not safe for concurrent use; the
Scheduler serialises every call.
*/
package visual

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"audioviz/internal/analysis"
)

var (
	ErrUnknownStyle  = errors.New("unknown visual style")
	ErrUnknownOption = errors.New("unknown style option")
	ErrInvalidOption = errors.New("invalid style option value")
)

// Source is what a style reads each tick. *audio.Engine implements it.
type Source interface {
	Spectrum(n int) []float64
	Waveform(n int) []float64
	RMS() float64
	IsBeat() bool
}

// BandSource is implemented by sources that also expose named band levels.
type BandSource interface {
	BandLevels() []analysis.BandLevel
}

// Options overrides a style's physics constants by name.
type Options map[string]float64

// Style is one visual consumer of the analysis.
type Style interface {
	Name() string
	Description() string
	FPS() int
	// Process advances the style by one tick.
	Process(src Source)
	// Frame returns a snapshot that stays valid after later ticks.
	Frame() Frame
	// Apply overrides constants. Unknown names are rejected.
	Apply(opts Options) error
}

// Frame is the per-tick snapshot handed to renderers and transports.
type Frame struct {
	Style     string               `json:"style"`
	Seq       uint64               `json:"seq"`
	Timestamp time.Time            `json:"ts"`
	RMS       float64              `json:"rms"`
	Beat      bool                 `json:"beat"`
	Bars      []float64            `json:"bars,omitempty"`
	Peaks     []float64            `json:"peaks,omitempty"`
	Rotation  float64              `json:"rotation"`
	Pulse     float64              `json:"pulse"`
	Particles []Particle           `json:"particles,omitempty"`
	Bands     []analysis.BandLevel `json:"bands,omitempty"`
	Waveform  []float64            `json:"waveform,omitempty"`
	History   [][]float64          `json:"history,omitempty"`
	Phase     float64              `json:"phase,omitempty"`
}

// Style names accepted by NewStyle and the visual.style config key.
const (
	StyleSpectrum = "spectrum"
	StyleCircular = "circular"
	StyleWaveform = "waveform"
)

// StyleNames lists the built-in styles in cycling order.
func StyleNames() []string {
	return []string{StyleSpectrum, StyleCircular, StyleWaveform}
}

// NewStyle builds a built-in style by name.
func NewStyle(name string) (Style, error) {
	switch name {
	case StyleSpectrum:
		return NewSpectrum(), nil
	case StyleCircular:
		return NewCircular(), nil
	case StyleWaveform:
		return NewWaveform(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStyle, name)
	}
}

// NewStyles builds every built-in style and applies the per-style overrides
// in opts, keyed by style name.
func NewStyles(opts map[string]map[string]float64) ([]Style, error) {
	var errs []error
	for name := range opts {
		if !slices.Contains(StyleNames(), name) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownStyle, name))
		}
	}

	styles := make([]Style, 0, len(StyleNames()))
	for _, name := range StyleNames() {
		style, err := NewStyle(name)
		if err != nil {
			return nil, err
		}
		if err := style.Apply(opts[name]); err != nil {
			errs = append(errs, err)
		}
		styles = append(styles, style)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return styles, nil
}

type optionSetter func(v float64) error

// applyOptions runs the setter for each option in name order, collecting
// every unknown or invalid option.
func applyOptions(style string, opts Options, setters map[string]optionSetter) error {
	var errs []error
	for _, key := range slices.Sorted(maps.Keys(opts)) {
		set, ok := setters[key]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s.%s", ErrUnknownOption, style, key))
			continue
		}
		if err := set(opts[key]); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", style, key, err))
		}
	}
	return errors.Join(errs...)
}

// Option validators.

func smoothingFactor(dst *float64) optionSetter {
	return func(v float64) error {
		if math.IsNaN(v) || v < 0 || v >= 1 {
			return fmt.Errorf("%w: %g not in [0, 1)", ErrInvalidOption, v)
		}
		*dst = v
		return nil
	}
}

func nonNegative(dst *float64) optionSetter {
	return func(v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %g is negative", ErrInvalidOption, v)
		}
		*dst = v
		return nil
	}
}

func count(dst *int, lo, hi int) optionSetter {
	return func(v float64) error {
		if v != math.Trunc(v) || v < float64(lo) || v > float64(hi) {
			return fmt.Errorf("%w: %g not an integer in [%d, %d]", ErrInvalidOption, v, lo, hi)
		}
		*dst = int(v)
		return nil
	}
}

func flag(dst *bool) optionSetter {
	return func(v float64) error {
		switch v {
		case 0:
			*dst = false
		case 1:
			*dst = true
		default:
			return fmt.Errorf("%w: %g is not 0 or 1", ErrInvalidOption, v)
		}
		return nil
	}
}

// wrapDegrees maps an angle into [0, 360).
func wrapDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Summary describes the frame in one log line.
func (f Frame) Summary() string {
	return fmt.Sprintf("%s seq=%d rms=%.3f beat=%t bars=%d points=%d particles=%d",
		f.Style, f.Seq, f.RMS, f.Beat, len(f.Bars), len(f.Waveform), len(f.Particles))
}
