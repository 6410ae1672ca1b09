// SPDX-License-Identifier: MIT
package visual

import (
	"slices"
)

const (
	defaultWaveformPoints    = 512
	defaultWaveformSmoothing = 0.3
	defaultWaveformHistory   = 3
	defaultWaveformFPS       = 30
	defaultPhaseStep         = 0.02

	maxWaveformPoints = 8192
)

// Waveform is an oscilloscope trace, triggered on a rising crossing so a
// steady tone holds still, with a short persistence history.
type Waveform struct {
	smoothing     float64
	triggerLevel  float64
	trigger       bool
	historyLength int

	data    []float64
	scratch []float64
	history [][]float64
	phase   float64
}

func NewWaveform() *Waveform {
	w := &Waveform{
		smoothing:     defaultWaveformSmoothing,
		trigger:       true,
		historyLength: defaultWaveformHistory,
	}
	w.resize(defaultWaveformPoints)
	return w
}

func (w *Waveform) resize(n int) {
	w.data = make([]float64, n)
	w.scratch = make([]float64, n)
	w.history = nil
}

func (w *Waveform) Name() string        { return StyleWaveform }
func (w *Waveform) Description() string { return "Oscilloscope-style waveform display" }
func (w *Waveform) FPS() int            { return defaultWaveformFPS }

func (w *Waveform) Process(src Source) {
	raw := src.Waveform(len(w.data))
	if len(raw) == len(w.data) {
		a := w.smoothing
		for i, v := range raw {
			w.data[i] = w.data[i]*a + v*(1-a)
		}
	}

	if w.trigger {
		if idx := findTrigger(w.data, w.triggerLevel); idx > 0 {
			w.rotateLeft(idx)
		}
	}

	// Oldest first; the backing arrays are recycled once the history is full.
	var entry []float64
	if len(w.history) >= w.historyLength && w.historyLength > 0 {
		entry = w.history[0]
		w.history = append(w.history[:0], w.history[1:]...)
	}
	if w.historyLength > 0 {
		entry = append(entry[:0], w.data...)
		w.history = append(w.history, entry)
	}

	w.phase += defaultPhaseStep
	if w.phase > 1 {
		w.phase = 0
	}
}

// findTrigger returns the first index i in [1, len-2] where the trace
// crosses level upwards, or 0.
func findTrigger(data []float64, level float64) int {
	for i := 1; i < len(data)-1; i++ {
		if data[i-1] <= level && data[i] > level {
			return i
		}
	}
	return 0
}

func (w *Waveform) rotateLeft(k int) {
	n := copy(w.scratch, w.data[k:])
	copy(w.scratch[n:], w.data[:k])
	w.data, w.scratch = w.scratch, w.data
}

func (w *Waveform) Frame() Frame {
	history := make([][]float64, len(w.history))
	for i, h := range w.history {
		history[i] = slices.Clone(h)
	}
	return Frame{
		Style:    w.Name(),
		Waveform: slices.Clone(w.data),
		History:  history,
		Phase:    w.phase,
		Pulse:    1,
	}
}

// Apply accepts points, smoothing, history, trigger (0 or 1) and
// trigger_level.
func (w *Waveform) Apply(opts Options) error {
	points := len(w.data)
	err := applyOptions(w.Name(), opts, map[string]optionSetter{
		"points":        count(&points, 2, maxWaveformPoints),
		"smoothing":     smoothingFactor(&w.smoothing),
		"history":       count(&w.historyLength, 0, 64),
		"trigger":       flag(&w.trigger),
		"trigger_level": func(v float64) error { w.triggerLevel = v; return nil },
	})
	if points != len(w.data) {
		w.resize(points)
	}
	if len(w.history) > w.historyLength {
		w.history = w.history[len(w.history)-w.historyLength:]
	}
	return err
}
