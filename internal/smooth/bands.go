// SPDX-License-Identifier: MIT
//
// Package smooth holds the per-consumer physics that turns jumpy per-block
// analysis into motion: an exponential low-pass per band with falling peak
// markers, and a damped oscillator driven by loudness.
package smooth

import "fmt"

// BandSmoother low-passes a vector of band levels and tracks a peak marker
// per band that falls under constant gravity. After every Update each peak is
// at least as high as its value.
type BandSmoother struct {
	// Alpha is the weight kept from the previous value, in [0, 1).
	Alpha float64
	// Gravity is added to a peak's fall velocity every update.
	Gravity float64

	values     []float64
	peaks      []float64
	velocities []float64
}

// NewBandSmoother returns a smoother for n bands, all at rest at zero.
func NewBandSmoother(n int, alpha, gravity float64) *BandSmoother {
	s := &BandSmoother{Alpha: alpha, Gravity: gravity}
	s.Resize(n)
	return s
}

// Update folds raw into the smoothed state. raw must have Len() entries.
func (s *BandSmoother) Update(raw []float64) error {
	if len(raw) != len(s.values) {
		return fmt.Errorf("smooth: got %d bands, want %d", len(raw), len(s.values))
	}

	for i, target := range raw {
		v := s.values[i]*s.Alpha + target*(1-s.Alpha)
		s.values[i] = v

		if v > s.peaks[i] {
			s.peaks[i] = v
			s.velocities[i] = 0
			continue
		}
		s.velocities[i] += s.Gravity
		s.peaks[i] = max(v, s.peaks[i]-s.velocities[i])
	}
	return nil
}

// Values returns the smoothed levels. The slice is owned by the smoother and
// is overwritten by the next Update.
func (s *BandSmoother) Values() []float64 { return s.values }

// Peaks returns the peak markers, with the same ownership as Values.
func (s *BandSmoother) Peaks() []float64 { return s.peaks }

// Len returns the number of bands.
func (s *BandSmoother) Len() int { return len(s.values) }

// Resize changes the band count and resets all state.
func (s *BandSmoother) Resize(n int) {
	n = max(n, 0)
	s.values = make([]float64, n)
	s.peaks = make([]float64, n)
	s.velocities = make([]float64, n)
}

// Reset zeroes all state without changing the band count.
func (s *BandSmoother) Reset() {
	clear(s.values)
	clear(s.peaks)
	clear(s.velocities)
}
