// SPDX-License-Identifier: MIT
package tui

import (
	"math"

	"audioviz/internal/visual"
)

// Terminal cells are roughly twice as tall as they are wide.
const cellAspect = 2.0

// Particle coordinates are in emitter units; this many make one row.
const particleScale = 8.0

var eighths = []rune(" ▁▂▃▄▅▆▇█")

// renderFrame draws f onto a w×h grid according to its style.
func renderFrame(f visual.Frame, w, h int) string {
	c := newCanvas(w, h)
	switch f.Style {
	case visual.StyleCircular:
		drawCircular(c, f)
	case visual.StyleWaveform:
		drawWaveform(c, f)
	default:
		drawBars(c, f.Bars, f.Peaks)
		drawParticles(c, f.Particles)
	}
	return c.String()
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// drawBars fills columns bottom-up with eighth blocks. When there are more
// bars than columns each column shows the loudest bar it covers.
func drawBars(c *canvas, bars, peaks []float64) {
	if len(bars) == 0 {
		return
	}
	cols := min(len(bars), c.w)
	colWidth := max(c.w/cols, 1)
	for col := range cols {
		lo, hi := col*len(bars)/cols, (col+1)*len(bars)/cols
		hi = max(hi, lo+1)
		var v, p float64
		for i := lo; i < hi; i++ {
			v = math.Max(v, clamp01(bars[i]))
			if i < len(peaks) {
				p = math.Max(p, clamp01(peaks[i]))
			}
		}

		color := paletteIndex(col, cols)
		level := v * float64(c.h)
		peakRow := c.h - 1 - int(p*float64(c.h-1))
		for x := col * colWidth; x < (col+1)*colWidth && x < c.w; x++ {
			if colWidth > 1 && x == (col+1)*colWidth-1 {
				continue // gap
			}
			for y := range c.h {
				fill := level - float64(c.h-1-y)
				switch {
				case fill >= 1:
					c.set(x, y, eighths[8], color)
				case fill > 0:
					c.set(x, y, eighths[int(fill*8)], color)
				}
			}
			if p > 0 && p > v && c.get(x, peakRow) == ' ' {
				c.set(x, peakRow, '▔', colorDim)
			}
		}
	}
}

// drawParticles places sparks relative to the bottom centre.
func drawParticles(c *canvas, particles []visual.Particle) {
	ox, oy := float64(c.w)/2, float64(c.h-1)
	for _, p := range particles {
		ch := '*'
		if p.Life < 0.5 {
			ch = '·'
		}
		x := int(math.Round(ox + p.X*cellAspect/particleScale))
		y := int(math.Round(oy + p.Y/particleScale))
		c.set(x, y, ch, p.Color%len(palette))
	}
}

// drawCircular plots each bar as a ray leaving a ring whose radius follows
// the frame's pulse.
func drawCircular(c *canvas, f visual.Frame) {
	cx, cy := float64(c.w-1)/2, float64(c.h-1)/2
	radius := math.Min(float64(c.w)/(2*cellAspect), float64(c.h)/2) - 1
	if radius < 1 || len(f.Bars) == 0 {
		return
	}
	pulse := f.Pulse
	if pulse <= 0 {
		pulse = 1
	}
	inner := math.Min(radius*0.35*pulse, radius*0.8)
	reach := radius - inner

	plot := func(r, theta float64, ch rune, color int) {
		x := int(math.Round(cx + r*math.Cos(theta)*cellAspect))
		y := int(math.Round(cy + r*math.Sin(theta)))
		c.set(x, y, ch, color)
	}

	steps := max(int(2*math.Pi*inner*cellAspect), 8)
	for i := range steps {
		plot(inner, 2*math.Pi*float64(i)/float64(steps), '·', colorDim)
	}

	n := len(f.Bars)
	for i, v := range f.Bars {
		theta := (f.Rotation + float64(i)*360/float64(n)) * math.Pi / 180
		length := clamp01(v) * reach
		color := paletteIndex(i, n)
		for r := inner; r <= inner+length; r += 0.5 {
			plot(r, theta, '•', color)
		}
		if i < len(f.Peaks) && f.Peaks[i] > v {
			plot(inner+clamp01(f.Peaks[i])*reach, theta, '∙', colorDim)
		}
	}
}

// drawWaveform draws the history faded behind the current trace.
func drawWaveform(c *canvas, f visual.Frame) {
	for _, trace := range f.History {
		drawTrace(c, trace, colorDim)
	}
	color := int(clamp01(f.Phase)*float64(len(palette))) % len(palette)
	drawTrace(c, f.Waveform, color)
}

func drawTrace(c *canvas, samples []float64, color int) {
	if len(samples) == 0 {
		return
	}
	mid := float64(c.h-1) / 2
	row := func(v float64) int {
		v = math.Max(-1, math.Min(1, v))
		if math.IsNaN(v) {
			v = 0
		}
		return int(math.Round(mid - v*mid))
	}

	prev := -1
	for x := range c.w {
		y := row(samples[x*len(samples)/c.w])
		if prev >= 0 {
			lo, hi := min(prev, y), max(prev, y)
			for yy := lo + 1; yy < hi; yy++ {
				c.set(x, yy, '│', color)
			}
		}
		c.set(x, y, '•', color)
		prev = y
	}
}
