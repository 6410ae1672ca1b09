// SPDX-License-Identifier: MIT
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorPlain = -1
	colorDim   = -2
)

type cell struct {
	ch    rune
	color int // palette index, colorPlain or colorDim
}

// canvas is a fixed character grid. Out of range writes are dropped so the
// renderers can plot without clipping first.
type canvas struct {
	w, h  int
	cells []cell
}

func newCanvas(w, h int) *canvas {
	w, h = max(w, 1), max(h, 1)
	c := &canvas{w: w, h: h, cells: make([]cell, w*h)}
	for i := range c.cells {
		c.cells[i] = cell{ch: ' ', color: colorPlain}
	}
	return c
}

func (c *canvas) set(x, y int, ch rune, color int) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.cells[y*c.w+x] = cell{ch: ch, color: color}
}

func (c *canvas) get(x, y int) rune {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return 0
	}
	return c.cells[y*c.w+x].ch
}

func styleFor(color int) lipgloss.Style {
	switch {
	case color == colorDim:
		return dimStyle
	case color >= 0 && color < len(palette):
		return palette[color]
	default:
		return lipgloss.NewStyle()
	}
}

// String renders row by row, styling each run of equally coloured cells once.
func (c *canvas) String() string {
	var sb strings.Builder
	var run strings.Builder
	for y := range c.h {
		if y > 0 {
			sb.WriteByte('\n')
		}
		row := c.cells[y*c.w : (y+1)*c.w]
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && row[x].color == row[start].color {
				continue
			}
			run.Reset()
			for _, cl := range row[start:x] {
				run.WriteRune(cl.ch)
			}
			if row[start].color == colorPlain {
				sb.WriteString(run.String())
			} else {
				sb.WriteString(styleFor(row[start].color).Render(run.String()))
			}
			start = x
		}
	}
	return sb.String()
}
