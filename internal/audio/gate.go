// SPDX-License-Identifier: MIT
package audio

import "math"

// EnableGate makes blocks whose peak stays at or below the gate threshold
// reach the analyzer as silence. Playback itself is never gated.
func (e *Engine) EnableGate() {
	e.gateEnabled.Store(true)
}

func (e *Engine) DisableGate() {
	e.gateEnabled.Store(false)
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	if math.IsNaN(threshold) || threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	e.gateThreshold.Store(math.Float32bits(float32(threshold)))
}

// GetGateThreshold returns the current noise gate threshold as a float64.
func (e *Engine) GetGateThreshold() float64 {
	return float64(math.Float32frombits(e.gateThreshold.Load()))
}

// gateOpen reports whether block should be analysed.
// Performance Critical (Hot Path):
//   - Compares magnitudes as raw IEEE-754 bits with the sign cleared, which
//     orders the same as the values for all non-NaN floats
func (e *Engine) gateOpen(block []float32) bool {
	if !e.gateEnabled.Load() {
		return true
	}
	threshold := e.gateThreshold.Load()
	if threshold >= math.Float32bits(1.0) {
		return false
	}
	for _, s := range block {
		if math.Float32bits(s)&0x7fffffff > threshold {
			return true
		}
	}
	return false
}
