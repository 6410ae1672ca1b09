// SPDX-License-Identifier: MIT
package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PlayPause key.Binding
	Stop      key.Binding
	SeekBack  key.Binding
	SeekFwd   key.Binding
	VolUp     key.Binding
	VolDown   key.Binding
	NextStyle key.Binding
	Devices   key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		PlayPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		SeekBack:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "-5%")),
		SeekFwd:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "+5%")),
		VolUp:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "vol up")),
		VolDown:   key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "vol down")),
		NextStyle: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "style")),
		Devices:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "devices")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Stop, k.SeekBack, k.SeekFwd, k.VolUp, k.VolDown, k.NextStyle, k.Devices, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Stop, k.SeekBack, k.SeekFwd},
		{k.VolUp, k.VolDown, k.NextStyle, k.Devices, k.Quit},
	}
}
