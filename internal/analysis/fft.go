// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	"audioviz/internal/log"
	"audioviz/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the taper applied to a block before the FFT.
type WindowFunc int

const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// fftWorkspace holds every buffer one transform needs. It is owned by the
// goroutine calling compute and is never read by consumers directly.
type fftWorkspace struct {
	calc       *fourier.FFT
	windowType WindowFunc
	input      []float64    // windowed, zero-padded block
	output     []complex128 // fftSize/2+1 coefficients
	magnitude  []float64    // |output|
	window     []float64    // coefficients for a full-length block
	partial    []float64    // coefficients for the last short block
	partialLen int
}

func newFFTWorkspace(fftSize int, windowType WindowFunc) (*fftWorkspace, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}

	bins := fftSize/2 + 1
	ws := &fftWorkspace{
		calc:       fourier.NewFFT(fftSize),
		windowType: windowType,
		input:      make([]float64, fftSize),
		output:     make([]complex128, bins),
		magnitude:  make([]float64, bins),
		window:     make([]float64, fftSize),
		partial:    make([]float64, fftSize),
	}
	applyWindow(ws.window, windowType)
	return ws, nil
}

// compute windows block over its own length, zero-pads it to the FFT size and
// leaves magnitudes in ws.magnitude. Blocks longer than the FFT are truncated.
func (ws *fftWorkspace) compute(block []float32) {
	n := min(len(block), len(ws.input))
	coeffs := ws.coefficients(n)

	for i := range ws.input {
		if i < n {
			ws.input[i] = float64(block[i]) * coeffs[i]
		} else {
			ws.input[i] = 0
		}
	}

	ws.calc.Coefficients(ws.output, ws.input)

	for i, c := range ws.output {
		ws.magnitude[i] = cmplx.Abs(c)
	}
}

// coefficients returns a window of length n without allocating. Only the
// final block of a file is ever shorter than the FFT, so the partial window
// is cached by length.
func (ws *fftWorkspace) coefficients(n int) []float64 {
	if n == len(ws.window) {
		return ws.window
	}
	if n != ws.partialLen {
		applyWindow(ws.partial[:n], ws.windowType)
		ws.partialLen = n
	}
	return ws.partial[:n]
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. It
// returns Hann and an error when the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the chosen window.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// gonum windows scale in place, so start from a flat signal.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	if len(coeffs) < 2 {
		return
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		log.Warnf("Analysis: unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
