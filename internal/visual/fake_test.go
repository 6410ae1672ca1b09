// SPDX-License-Identifier: MIT
package visual

import (
	"sync"

	"audioviz/internal/analysis"
)

// fakeSource returns fixed analysis values.
type fakeSource struct {
	mu       sync.Mutex
	level    float64   // every spectrum band
	spectrum []float64 // overrides level when set
	wave     func(i, n int) float64
	rms      float64
	beat     bool
	calls    int
}

func (f *fakeSource) Spectrum(n int) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]float64, n)
	for i := range out {
		if i < len(f.spectrum) {
			out[i] = f.spectrum[i]
		} else {
			out[i] = f.level
		}
	}
	return out
}

func (f *fakeSource) Waveform(n int) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, n)
	if f.wave != nil {
		for i := range out {
			out[i] = f.wave(i, n)
		}
	}
	return out
}

func (f *fakeSource) RMS() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rms
}

func (f *fakeSource) IsBeat() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beat
}

// bandSource adds named bands.
type bandSource struct {
	fakeSource
}

func (b *bandSource) BandLevels() []analysis.BandLevel {
	levels := make([]analysis.BandLevel, len(analysis.NamedBands))
	for i, band := range analysis.NamedBands {
		levels[i] = analysis.BandLevel{FrequencyBand: band, Level: 0.5}
	}
	return levels
}
