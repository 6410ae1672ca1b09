// SPDX-License-Identifier: MIT
package analysis

import "math"

const (
	// floorDB is the level mapped to 0; anything quieter is clamped.
	floorDB   = -60.0
	epsilonDB = 1e-10
)

// BandEdges splits bins magnitude bins into n log-spaced bands. Band i spans
// [edges[i], edges[i+1]). The edges run from bin 1 to bins and are truncated
// to integers, so the lowest bands are often empty.
func BandEdges(bins, n int) []int {
	if n <= 0 {
		return []int{}
	}
	edges := make([]int, n+1)
	fillBandEdges(edges, bins)
	return edges
}

func fillBandEdges(edges []int, bins int) {
	n := len(edges) - 1
	for i := range edges {
		edges[i] = int(math.Pow(float64(bins), float64(i)/float64(n)))
	}
}

// levelFromMagnitude maps a linear magnitude to [0, 1] on a 60 dB scale.
func levelFromMagnitude(v float64) float64 {
	db := 20 * math.Log10(v+epsilonDB)
	return math.Min(math.Max(db-floorDB, 0), -floorDB) / -floorDB
}

// bandSpectrum averages magnitudes into len(dst) log-spaced bands and writes
// their levels to dst. edges must hold len(dst)+1 entries.
func bandSpectrum(dst []float64, magnitudes []float64, edges []int) {
	bins := len(magnitudes)
	for i := range dst {
		start := edges[i]
		end := min(edges[i+1], bins)
		if start >= end {
			dst[i] = levelFromMagnitude(0)
			continue
		}
		var sum float64
		for _, m := range magnitudes[start:end] {
			sum += m
		}
		dst[i] = levelFromMagnitude(sum / float64(end-start))
	}
}
