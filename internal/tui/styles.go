// SPDX-License-Identifier: MIT
package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#8A2BE2")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF1493")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C6C8A"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)

	beatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF69B4")).
			Bold(true)
)

// palette runs from low to high frequencies.
var palette = []lipgloss.Style{
	lipgloss.NewStyle().Foreground(lipgloss.Color("#8A2BE2")), // blue violet
	lipgloss.NewStyle().Foreground(lipgloss.Color("#4B0082")), // indigo
	lipgloss.NewStyle().Foreground(lipgloss.Color("#FF1493")), // deep pink
	lipgloss.NewStyle().Foreground(lipgloss.Color("#FF69B4")), // hot pink
	lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC0CB")), // pink
}

// paletteIndex maps position i of n onto the palette.
func paletteIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return min(i*len(palette)/n, len(palette)-1)
}
