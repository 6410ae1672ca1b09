// SPDX-License-Identifier: MIT
package visual

import (
	"math/rand/v2"
	"slices"
	"time"

	"audioviz/internal/smooth"
)

const (
	defaultSpectrumBars      = 64
	defaultSpectrumSmoothing = 0.8
	defaultSpectrumGravity   = 0.005
	defaultSpectrumFPS       = 60
	defaultMaxParticles      = 50
	defaultRotationSpeed     = 0.5 // degrees per tick
	defaultRMSPulseGain      = 0.3

	maxBars = 512
)

// Spectrum draws smoothed bars with falling peaks over a slowly rotating,
// loudness-pulsed background, and throws particles on beats.
type Spectrum struct {
	bars      *smooth.BandSmoother
	particles *particleSystem

	rotationSpeed float64
	pulseGain     float64

	rotation float64
	pulse    float64
	rms      float64
	beat     bool
}

func NewSpectrum() *Spectrum {
	seed := uint64(time.Now().UnixNano())
	return newSpectrum(rand.New(rand.NewPCG(seed, seed>>1)))
}

func newSpectrum(rng *rand.Rand) *Spectrum {
	return &Spectrum{
		bars:          smooth.NewBandSmoother(defaultSpectrumBars, defaultSpectrumSmoothing, defaultSpectrumGravity),
		particles:     newParticleSystem(rng, defaultMaxParticles),
		rotationSpeed: defaultRotationSpeed,
		pulseGain:     defaultRMSPulseGain,
		pulse:         1,
	}
}

func (s *Spectrum) Name() string { return StyleSpectrum }
func (s *Spectrum) Description() string {
	return "Frequency bars with falling peaks and beat particles"
}
func (s *Spectrum) FPS() int { return defaultSpectrumFPS }

func (s *Spectrum) Process(src Source) {
	raw := src.Spectrum(s.bars.Len())
	if len(raw) == s.bars.Len() {
		_ = s.bars.Update(raw)
	}

	s.rms = src.RMS()
	s.beat = src.IsBeat()
	if s.beat {
		s.particles.burst()
	}
	s.particles.step()

	s.rotation = wrapDegrees(s.rotation + s.rotationSpeed)
	s.pulse = 1 + s.rms*s.pulseGain
}

func (s *Spectrum) Frame() Frame {
	return Frame{
		Style:     s.Name(),
		RMS:       s.rms,
		Beat:      s.beat,
		Bars:      slices.Clone(s.bars.Values()),
		Peaks:     slices.Clone(s.bars.Peaks()),
		Rotation:  s.rotation,
		Pulse:     s.pulse,
		Particles: s.particles.snapshot(),
	}
}

// Apply accepts bars, smoothing, gravity, max_particles, rotation_speed and
// pulse_gain.
func (s *Spectrum) Apply(opts Options) error {
	bars := s.bars.Len()
	err := applyOptions(s.Name(), opts, map[string]optionSetter{
		"bars":           count(&bars, 1, maxBars),
		"smoothing":      smoothingFactor(&s.bars.Alpha),
		"gravity":        nonNegative(&s.bars.Gravity),
		"max_particles":  count(&s.particles.max, 0, 1000),
		"rotation_speed": nonNegative(&s.rotationSpeed),
		"pulse_gain":     nonNegative(&s.pulseGain),
	})
	if bars != s.bars.Len() {
		s.bars.Resize(bars)
	}
	return err
}
