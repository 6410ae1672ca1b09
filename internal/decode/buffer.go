// SPDX-License-Identifier: MIT
package decode

import "time"

// SampleBuffer is a decoded, mono, peak-normalised signal held in memory.
// It is never mutated after Load returns; a new file replaces it wholesale.
type SampleBuffer struct {
	Samples    []float32
	SampleRate int
}

// NewSampleBuffer wraps already-mono samples. The slice is not copied.
func NewSampleBuffer(samples []float32, sampleRate int) *SampleBuffer {
	return &SampleBuffer{Samples: samples, SampleRate: sampleRate}
}

// Len returns the number of samples.
func (b *SampleBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// Seconds returns the length of the buffer in seconds.
func (b *SampleBuffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Duration is Seconds as a time.Duration.
func (b *SampleBuffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}
