// SPDX-License-Identifier: MIT
package analysis

import "math"

// FrequencyBand names a frequency range in Hz. HighHz is exclusive.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// BandLevel is the normalised energy of one band for the current block.
type BandLevel struct {
	FrequencyBand
	Level float64
}

// NamedBands are the seven conventional mixing bands.
var NamedBands = []FrequencyBand{
	{Name: "sub_bass", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "low_mid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "upper_mid", LowHz: 2000, HighHz: 4000},
	{Name: "presence", LowHz: 4000, HighHz: 6000},
	{Name: "brilliance", LowHz: 6000, HighHz: 20000},
}

// BandEnergies computes the RMS magnitude of each band from the provider's
// latest spectrum and maps it onto the same 60 dB scale as Spectrum. Bands
// with no bins (above Nyquist, or narrower than one bin) read 0.
func BandEnergies(p FFTResultProvider, bands []FrequencyBand) []BandLevel {
	magnitudes := p.GetMagnitudes()
	energy := make([]float64, len(bands))
	counts := make([]int, len(bands))

	for i, m := range magnitudes {
		freq := p.GetFrequencyForBin(i)
		for b, band := range bands {
			if freq >= band.LowHz && freq < band.HighHz {
				energy[b] += m * m
				counts[b]++
				break
			}
		}
	}

	levels := make([]BandLevel, len(bands))
	for b, band := range bands {
		levels[b].FrequencyBand = band
		if counts[b] > 0 {
			levels[b].Level = levelFromMagnitude(math.Sqrt(energy[b] / float64(counts[b])))
		}
	}
	return levels
}
