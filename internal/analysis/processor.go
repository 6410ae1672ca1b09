// SPDX-License-Identifier: MIT
package analysis

// BlockProcessor consumes every block the playback callback delivers.
// Implementations run on the audio thread, so they must not block or allocate.
type BlockProcessor interface {
	OnBlockDelivered(block []float32)
}

// FFTResultProvider exposes the latest magnitude spectrum and the geometry
// needed to map bins to frequencies. BandLevels and the waveform-free styles
// depend on it rather than on the Analyzer itself.
type FFTResultProvider interface {
	GetMagnitudes() []float64                // GetMagnitudes returns a copy of the latest magnitude spectrum.
	GetFrequencyForBin(binIndex int) float64 // GetFrequencyForBin returns the centre frequency (Hz) of a bin.
	GetFFTSize() int                         // GetFFTSize returns the transform length.
	GetSampleRate() float64                  // GetSampleRate returns the rate of the analysed signal.
}
