// SPDX-License-Identifier: MIT
package smooth

// Oscillator is a damped velocity driven by loudness and kicked by beats.
// The circular style integrates its output into a rotation angle.
type Oscillator struct {
	Drive   float64 // velocity added per unit of RMS
	Damping float64 // velocity multiplier per step, in [0, 1)
	Boost   float64 // velocity added on a beat

	velocity float64
}

// NewOscillator returns an oscillator at rest.
func NewOscillator(drive, damping, boost float64) *Oscillator {
	return &Oscillator{Drive: drive, Damping: damping, Boost: boost}
}

// Step advances one tick and returns the velocity to integrate. Damping and
// the beat kick apply after the returned value is taken, so a beat shows up
// in the next step's output.
func (o *Oscillator) Step(rms float64, beat bool) float64 {
	o.velocity += rms * o.Drive
	out := o.velocity
	o.velocity *= o.Damping
	if beat {
		o.velocity += o.Boost
	}
	return out
}

// Velocity returns the current velocity.
func (o *Oscillator) Velocity() float64 { return o.velocity }

// Reset stops the oscillator.
func (o *Oscillator) Reset() { o.velocity = 0 }
