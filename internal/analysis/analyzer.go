// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"

	"audioviz/internal/log"
	"audioviz/pkg/bitint"
)

const (
	minFFTSize = 64
	maxFFTSize = 8192
)

// Frame is a snapshot of the analysis of the most recent block.
type Frame struct {
	Magnitudes []float64
	RMS        float64
	Beat       bool
}

// Analyzer turns delivered blocks into a magnitude spectrum, an RMS level and
// a beat flag. OnBlockDelivered is called from the audio callback and the
// query methods from any other goroutine. Only the final copy into the
// published state happens under the lock.
type Analyzer struct {
	fftSize int
	ws      *fftWorkspace
	beat    *BeatDetector

	mu         sync.RWMutex
	sampleRate float64
	magnitude  []float64
	rms        float64
	isBeat     bool
	edges      []int // scratch for SpectrumInto, guarded by mu
}

// Compile-time checks for interface implementations.
var _ BlockProcessor = (*Analyzer)(nil)
var _ FFTResultProvider = (*Analyzer)(nil)

// NewAnalyzer sizes the FFT to the next power of two that holds
// framesPerBuffer samples.
func NewAnalyzer(framesPerBuffer int, sampleRate float64, windowType WindowFunc, beatThreshold float64) (*Analyzer, error) {
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	fftSize := bitint.ClampPowerOfTwo(framesPerBuffer, minFFTSize, maxFFTSize)
	ws, err := newFFTWorkspace(fftSize, windowType)
	if err != nil {
		return nil, err
	}

	log.Infof("Analysis: initializing analyzer (FFT size: %d, sample rate: %.1f Hz, window: %v, beat threshold: %.2f)",
		fftSize, sampleRate, windowType, beatThreshold)

	return &Analyzer{
		fftSize:    fftSize,
		ws:         ws,
		beat:       NewBeatDetector(beatThreshold),
		sampleRate: sampleRate,
		magnitude:  make([]float64, len(ws.magnitude)),
	}, nil
}

// OnBlockDelivered analyses one block. It must not be called concurrently
// with itself; the playback engine guarantees a single caller.
func (a *Analyzer) OnBlockDelivered(block []float32) {
	a.ws.compute(block)
	rms := BlockRMS(block)
	beat := a.beat.Detect(rms)

	a.mu.Lock()
	copy(a.magnitude, a.ws.magnitude)
	a.rms = rms
	a.isBeat = beat
	a.mu.Unlock()
}

// Reset clears the published analysis, as if a silent block was delivered.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	clear(a.magnitude)
	a.rms = 0
	a.isBeat = false
	a.mu.Unlock()
}

// SetSampleRate updates the rate used to map bins to frequencies. The engine
// calls it whenever a new buffer is loaded.
func (a *Analyzer) SetSampleRate(rate float64) {
	if rate <= 0 {
		return
	}
	a.mu.Lock()
	a.sampleRate = rate
	a.mu.Unlock()
}

// Spectrum returns n log-spaced band levels in [0, 1]. n <= 0 yields an
// empty slice.
func (a *Analyzer) Spectrum(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	dst := make([]float64, n)
	a.SpectrumInto(dst)
	return dst
}

// SpectrumInto fills dst with len(dst) band levels without allocating once
// the edge scratch has grown to size.
func (a *Analyzer) SpectrumInto(dst []float64) {
	if len(dst) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if cap(a.edges) < len(dst)+1 {
		a.edges = make([]int, len(dst)+1)
	}
	edges := a.edges[:len(dst)+1]
	fillBandEdges(edges, len(a.magnitude))
	bandSpectrum(dst, a.magnitude, edges)
}

// RMS returns the RMS of the last block.
func (a *Analyzer) RMS() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rms
}

// IsBeat reports whether the last block crossed the beat threshold.
func (a *Analyzer) IsBeat() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isBeat
}

// Frame returns a copy of the full analysis state.
func (a *Analyzer) Frame() Frame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	mags := make([]float64, len(a.magnitude))
	copy(mags, a.magnitude)
	return Frame{Magnitudes: mags, RMS: a.rms, Beat: a.isBeat}
}

// BandLevels returns the seven named bands for the last block.
func (a *Analyzer) BandLevels() []BandLevel {
	return BandEnergies(a, NamedBands)
}

// GetMagnitudes returns a copy of the latest magnitude spectrum
// (fftSize/2+1 bins).
func (a *Analyzer) GetMagnitudes() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	magCopy := make([]float64, len(a.magnitude))
	copy(magCopy, a.magnitude)
	return magCopy
}

// GetMagnitudesInto copies the latest magnitudes into dest, which must have
// exactly fftSize/2+1 entries.
func (a *Analyzer) GetMagnitudesInto(dest []float64) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(dest) != len(a.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dest), len(a.magnitude))
	}
	copy(dest, a.magnitude)
	return nil
}

// GetFrequencyForBin returns binIndex * sampleRate / fftSize, or 0 for an
// out of range bin.
func (a *Analyzer) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(a.magnitude) {
		return 0.0
	}
	a.mu.RLock()
	rate := a.sampleRate
	a.mu.RUnlock()
	return float64(binIndex) * (rate / float64(a.fftSize))
}

// GetFFTSize returns the transform length. Immutable after creation.
func (a *Analyzer) GetFFTSize() int {
	return a.fftSize
}

// GetSampleRate returns the rate used for bin frequencies.
func (a *Analyzer) GetSampleRate() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sampleRate
}

// BeatThreshold returns the fixed RMS threshold.
func (a *Analyzer) BeatThreshold() float64 {
	return a.beat.Threshold()
}
