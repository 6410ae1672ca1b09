// SPDX-License-Identifier: MIT
package visual

import (
	"slices"

	"audioviz/internal/analysis"
	"audioviz/internal/smooth"
)

const (
	defaultCircularBars      = 64
	defaultCircularSmoothing = 0.85
	defaultCircularGravity   = 0.008
	defaultCircularFPS       = 60
	defaultRotationDrive     = 5
	defaultRotationDamping   = 0.95
	defaultBeatBoost         = 20
	defaultBassBars          = 8
	defaultBassPulseGain     = 0.2
)

// Circular arranges the bars around a ring whose spin is driven by loudness
// and kicked on beats, and whose radius pulses with the bass bars.
type Circular struct {
	bars *smooth.BandSmoother
	spin *smooth.Oscillator

	clockwise bool
	bassBars  int
	pulseGain float64

	rotation float64
	pulse    float64
	rms      float64
	beat     bool
	bands    []analysis.BandLevel
}

func NewCircular() *Circular {
	return &Circular{
		bars:      smooth.NewBandSmoother(defaultCircularBars, defaultCircularSmoothing, defaultCircularGravity),
		spin:      smooth.NewOscillator(defaultRotationDrive, defaultRotationDamping, defaultBeatBoost),
		clockwise: true,
		bassBars:  defaultBassBars,
		pulseGain: defaultBassPulseGain,
		pulse:     1,
	}
}

func (c *Circular) Name() string        { return StyleCircular }
func (c *Circular) Description() string { return "Frequency bars arranged in a rotating circle" }
func (c *Circular) FPS() int            { return defaultCircularFPS }

func (c *Circular) Process(src Source) {
	raw := src.Spectrum(c.bars.Len())
	if len(raw) == c.bars.Len() {
		_ = c.bars.Update(raw)
	}

	c.rms = src.RMS()
	c.beat = src.IsBeat()

	velocity := c.spin.Step(c.rms, c.beat)
	if !c.clockwise {
		velocity = -velocity
	}
	c.rotation = wrapDegrees(c.rotation + velocity)

	// Pulse follows the unsmoothed low bars.
	c.pulse = 1 + mean(raw[:min(c.bassBars, len(raw))])*c.pulseGain

	if bs, ok := src.(BandSource); ok {
		c.bands = bs.BandLevels()
	}
}

func (c *Circular) Frame() Frame {
	return Frame{
		Style:    c.Name(),
		RMS:      c.rms,
		Beat:     c.beat,
		Bars:     slices.Clone(c.bars.Values()),
		Peaks:    slices.Clone(c.bars.Peaks()),
		Rotation: c.rotation,
		Pulse:    c.pulse,
		Bands:    slices.Clone(c.bands),
	}
}

// Apply accepts bars, smoothing, gravity, drive, damping, beat_boost,
// clockwise (0 or 1), bass_bars and pulse_gain.
func (c *Circular) Apply(opts Options) error {
	bars := c.bars.Len()
	err := applyOptions(c.Name(), opts, map[string]optionSetter{
		"bars":       count(&bars, 1, maxBars),
		"smoothing":  smoothingFactor(&c.bars.Alpha),
		"gravity":    nonNegative(&c.bars.Gravity),
		"drive":      nonNegative(&c.spin.Drive),
		"damping":    smoothingFactor(&c.spin.Damping),
		"beat_boost": nonNegative(&c.spin.Boost),
		"clockwise":  flag(&c.clockwise),
		"bass_bars":  count(&c.bassBars, 1, maxBars),
		"pulse_gain": nonNegative(&c.pulseGain),
	})
	if bars != c.bars.Len() {
		c.bars.Resize(bars)
	}
	return err
}
