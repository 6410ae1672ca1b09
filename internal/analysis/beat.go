// SPDX-License-Identifier: MIT
package analysis

import "math"

// DefaultBeatThreshold is the block RMS above which a block counts as a beat.
const DefaultBeatThreshold = 0.3

// BeatDetector flags loud blocks. It has no memory: a sustained loud passage
// is reported as a beat on every block.
type BeatDetector struct {
	threshold float64
}

// NewBeatDetector returns a detector with a fixed RMS threshold. A negative
// threshold is treated as zero.
func NewBeatDetector(threshold float64) *BeatDetector {
	return &BeatDetector{threshold: max(threshold, 0)}
}

// Detect reports whether rms exceeds the threshold.
func (d *BeatDetector) Detect(rms float64) bool {
	return rms > d.threshold
}

// Threshold returns the configured threshold.
func (d *BeatDetector) Threshold() float64 {
	return d.threshold
}

// BlockRMS is the root mean square of block. An empty block has RMS 0.
func BlockRMS(block []float32) float64 {
	if len(block) == 0 {
		return 0.0
	}

	var sumSquare float64
	for _, sample := range block {
		s := float64(sample)
		sumSquare += s * s
	}
	return math.Sqrt(sumSquare / float64(len(block)))
}
