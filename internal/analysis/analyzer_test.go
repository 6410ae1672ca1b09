// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"math/rand/v2"
	"testing"

	"audioviz/pkg/utils"
)

const (
	testFrames     = 2048
	testSampleRate = 44100
)

func newTestAnalyzer(t testing.TB) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(testFrames, testSampleRate, Hann, DefaultBeatThreshold)
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	return a
}

func bandContaining(edges []int, bin int) int {
	for i := 0; i+1 < len(edges); i++ {
		if edges[i] <= bin && bin < edges[i+1] {
			return i
		}
	}
	return -1
}

func TestAnalyzer_SineDominatesHighBands(t *testing.T) {
	a := newTestAnalyzer(t)
	// 0.9 normalised peak at volume 0.7
	a.OnBlockDelivered(utils.GenerateSineWave(testFrames, testSampleRate, 440, 0.63))

	const bands = 64
	spectrum := a.Spectrum(bands)
	edges := BandEdges(testFrames/2+1, bands)

	binWidth := float64(testSampleRate) / testFrames
	toneBand := bandContaining(edges, int(math.Round(440/binWidth)))
	if toneBand < 0 {
		t.Fatalf("no band contains the 440 Hz bin, edges = %v", edges)
	}
	if spectrum[toneBand] <= 0.5 {
		t.Errorf("440 Hz band level = %f, want > 0.5", spectrum[toneBand])
	}

	cutoff := int(math.Ceil(5000 / binWidth))
	checked := 0
	for i := range bands {
		if edges[i] < cutoff {
			continue
		}
		checked++
		if spectrum[i] >= spectrum[toneBand] {
			t.Errorf("band %d [%d,%d) level %f >= 440 Hz band level %f",
				i, edges[i], edges[i+1], spectrum[i], spectrum[toneBand])
		}
	}
	if checked == 0 {
		t.Fatal("no bands above 5 kHz were checked")
	}

	if !a.IsBeat() {
		t.Errorf("IsBeat() = false for RMS %f", a.RMS())
	}
}

func TestAnalyzer_Silence(t *testing.T) {
	a := newTestAnalyzer(t)
	a.OnBlockDelivered(utils.GenerateSilence(testFrames))

	if a.RMS() != 0 {
		t.Errorf("RMS() = %f, want 0", a.RMS())
	}
	if a.IsBeat() {
		t.Error("IsBeat() = true for silence")
	}
	for i, v := range a.Spectrum(32) {
		if v != 0 {
			t.Errorf("Spectrum()[%d] = %f, want 0", i, v)
		}
	}
}

func TestAnalyzer_BeatThreshold(t *testing.T) {
	tests := []struct {
		name      string
		amplitude float64
		want      bool
	}{
		{"Quiet", 0.2, false},      // RMS ~0.14
		{"Just under", 0.4, false}, // RMS ~0.28
		{"Loud", 0.9, true},        // RMS ~0.64
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(t)
			a.OnBlockDelivered(utils.GenerateSineWave(testFrames, testSampleRate, 220, tt.amplitude))
			if got := a.IsBeat(); got != tt.want {
				t.Errorf("IsBeat() = %v with RMS %f, want %v", got, a.RMS(), tt.want)
			}
		})
	}
}

func TestAnalyzer_SpectrumShape(t *testing.T) {
	a := newTestAnalyzer(t)

	rng := rand.New(rand.NewPCG(1, 2))
	noise := make([]float32, testFrames)
	for i := range noise {
		noise[i] = float32(rng.Float64()*2 - 1)
	}
	a.OnBlockDelivered(noise)

	for _, n := range []int{1, 7, 32, 64, 128} {
		s := a.Spectrum(n)
		if len(s) != n {
			t.Fatalf("Spectrum(%d) has %d values", n, len(s))
		}
		for i, v := range s {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Errorf("Spectrum(%d)[%d] = %f, want value in [0, 1]", n, i, v)
			}
		}
	}

	if got := a.Spectrum(0); len(got) != 0 {
		t.Errorf("Spectrum(0) = %v, want empty", got)
	}
	if got := a.Spectrum(-3); len(got) != 0 {
		t.Errorf("Spectrum(-3) = %v, want empty", got)
	}
}

func TestAnalyzer_ShortFinalBlock(t *testing.T) {
	a := newTestAnalyzer(t)
	for _, n := range []int{1, 2, 100} {
		a.OnBlockDelivered(utils.GenerateSineWave(n, testSampleRate, 440, 0.5))
		for i, m := range a.GetMagnitudes() {
			if math.IsNaN(m) || math.IsInf(m, 0) {
				t.Fatalf("block of %d: magnitude[%d] = %f", n, i, m)
			}
		}
	}
	a.OnBlockDelivered(nil)
	if a.RMS() != 0 {
		t.Errorf("RMS() after empty block = %f, want 0", a.RMS())
	}
}

func TestAnalyzer_Reset(t *testing.T) {
	a := newTestAnalyzer(t)
	a.OnBlockDelivered(utils.GenerateSineWave(testFrames, testSampleRate, 440, 0.9))
	a.Reset()

	f := a.Frame()
	if f.RMS != 0 || f.Beat {
		t.Errorf("Frame() after Reset = rms %f beat %v", f.RMS, f.Beat)
	}
	for i, m := range f.Magnitudes {
		if m != 0 {
			t.Fatalf("magnitude[%d] = %f after Reset", i, m)
		}
	}
}

func TestAnalyzer_BandLevels(t *testing.T) {
	a := newTestAnalyzer(t)
	a.OnBlockDelivered(utils.GenerateSineWave(testFrames, testSampleRate, 440, 0.63))

	levels := a.BandLevels()
	if len(levels) != len(NamedBands) {
		t.Fatalf("BandLevels() returned %d bands, want %d", len(levels), len(NamedBands))
	}

	loudest := levels[0]
	for _, l := range levels[1:] {
		if l.Level > loudest.Level {
			loudest = l
		}
	}
	if loudest.Name != "low_mid" {
		t.Errorf("loudest band = %s, want low_mid (levels %+v)", loudest.Name, levels)
	}
}

func TestAnalyzer_FFTGeometry(t *testing.T) {
	a, err := NewAnalyzer(1000, 48000, Hamming, DefaultBeatThreshold)
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	if a.GetFFTSize() != 1024 {
		t.Errorf("GetFFTSize() = %d, want 1024", a.GetFFTSize())
	}
	if got := len(a.GetMagnitudes()); got != 513 {
		t.Errorf("magnitude bins = %d, want 513", got)
	}
	if got, want := a.GetFrequencyForBin(10), 10*48000.0/1024; got != want {
		t.Errorf("GetFrequencyForBin(10) = %f, want %f", got, want)
	}
	if a.GetFrequencyForBin(-1) != 0 || a.GetFrequencyForBin(513) != 0 {
		t.Error("out of range bins should map to 0 Hz")
	}

	a.SetSampleRate(22050)
	if a.GetSampleRate() != 22050 {
		t.Errorf("GetSampleRate() = %f after SetSampleRate", a.GetSampleRate())
	}

	if err := a.GetMagnitudesInto(make([]float64, 10)); err == nil {
		t.Error("GetMagnitudesInto accepted a short slice")
	}
}

func TestNewAnalyzer_Errors(t *testing.T) {
	if _, err := NewAnalyzer(0, testSampleRate, Hann, 0.3); err == nil {
		t.Error("expected error for zero frames per buffer")
	}
	if _, err := NewAnalyzer(testFrames, 0, Hann, 0.3); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestBandEdges(t *testing.T) {
	for _, n := range []int{1, 4, 32, 64} {
		edges := BandEdges(1025, n)
		if len(edges) != n+1 {
			t.Fatalf("BandEdges(1025, %d) has %d edges", n, len(edges))
		}
		if edges[0] != 1 || edges[n] != 1025 {
			t.Errorf("BandEdges(1025, %d) spans [%d, %d], want [1, 1025]", n, edges[0], edges[n])
		}
		for i := 1; i <= n; i++ {
			if edges[i] < edges[i-1] {
				t.Errorf("edges not monotone at %d: %v", i, edges)
			}
		}
	}
	if got := BandEdges(1025, 0); len(got) != 0 {
		t.Errorf("BandEdges(1025, 0) = %v, want empty", got)
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowFunc
		wantErr bool
	}{
		{"hann", Hann, false},
		{"Hanning", Hann, false},
		{"", Hann, false},
		{"BLACKMAN", Blackman, false},
		{"hamming", Hamming, false},
		{"nuttall", Nuttall, false},
		{"triangle", Hann, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.in)
			if got != tt.want || (err != nil) != tt.wantErr {
				t.Errorf("ParseWindowFunc(%q) = (%v, %v), want (%v, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func TestOnBlockDeliveredZeroAllocs(t *testing.T) {
	a := newTestAnalyzer(t)
	block := utils.GenerateComplexWave(testFrames, testSampleRate)

	// Warm-up call so lazily sized state does not count.
	a.OnBlockDelivered(block)
	allocs := testing.AllocsPerRun(100, func() {
		a.OnBlockDelivered(block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in OnBlockDelivered, got %.1f", allocs)
	}
}

func TestSpectrumIntoZeroAllocs(t *testing.T) {
	a := newTestAnalyzer(t)
	a.OnBlockDelivered(utils.GenerateComplexWave(testFrames, testSampleRate))
	dst := make([]float64, 64)

	a.SpectrumInto(dst)
	allocs := testing.AllocsPerRun(100, func() {
		a.SpectrumInto(dst)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in SpectrumInto, got %.1f", allocs)
	}
}

func BenchmarkOnBlockDelivered(b *testing.B) {
	a := newTestAnalyzer(b)
	block := utils.GenerateComplexWave(testFrames, testSampleRate)

	b.ReportAllocs()
	for b.Loop() {
		a.OnBlockDelivered(block)
	}
}
