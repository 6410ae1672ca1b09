// SPDX-License-Identifier: MIT
package visual

import (
	"math/rand/v2"
	"slices"
)

// Particle physics, per tick.
const (
	particleGravity = 0.2
	particleFade    = 0.02
	paletteSize     = 5
)

// Particle is one beat spark. Positions are relative to the emitter, which
// renderers place at the centre of their canvas.
type Particle struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
	Size  float64 `json:"size"`
	Life  float64 `json:"life"`  // 1 at birth, removed at 0
	Color int     `json:"color"` // palette index in [0, paletteSize)
}

// particleSystem spawns bursts on beats and ages them under gravity.
type particleSystem struct {
	rng       *rand.Rand
	max       int
	particles []Particle
}

func newParticleSystem(rng *rand.Rand, limit int) *particleSystem {
	return &particleSystem{rng: rng, max: limit}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// burst adds 3 to 7 particles when the system is below its cap. A burst may
// overshoot the cap by at most six.
func (ps *particleSystem) burst() {
	if len(ps.particles) >= ps.max {
		return
	}
	n := 3 + ps.rng.IntN(5)
	for range n {
		ps.particles = append(ps.particles, Particle{
			VX:    uniform(ps.rng, -5, 5),
			VY:    uniform(ps.rng, -8, -2),
			Size:  uniform(ps.rng, 2, 6),
			Life:  1,
			Color: ps.rng.IntN(paletteSize),
		})
	}
}

// step moves every particle and drops the dead ones.
func (ps *particleSystem) step() {
	for i := range ps.particles {
		p := &ps.particles[i]
		p.X += p.VX
		p.Y += p.VY
		p.VY += particleGravity
		p.Life -= particleFade
	}
	ps.particles = slices.DeleteFunc(ps.particles, func(p Particle) bool {
		return p.Life <= 0
	})
}

func (ps *particleSystem) snapshot() []Particle {
	return slices.Clone(ps.particles)
}

func (ps *particleSystem) reset() {
	ps.particles = ps.particles[:0]
}
