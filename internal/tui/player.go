// SPDX-License-Identifier: MIT
/*
Package tui renders the player and the output device browser in the terminal.

The player never ticks the visual styles itself. It reads the scheduler's
latest frame on its own refresh timer, so the terminal can redraw slower
than the style runs.
*/
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"audioviz/internal/audio"
	"audioviz/internal/visual"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	refreshRate = 30 // redraws per second
	seekStep    = 0.05
	volumeStep  = 0.05

	// Rows taken by the title, status, progress and help lines.
	chromeRows = 7
)

// Controller is the part of the engine the player drives.
type Controller interface {
	Load(ctx context.Context, path string) error
	Play() error
	Pause()
	Stop() error
	Seek(f float64)
	SetVolume(v float64)
	Volume() float64
	State() audio.State
	CurrentTime() float64
	TotalTime() float64
	SetOutputDevice(deviceID int) error
}

type screen int

const (
	playerScreen screen = iota
	deviceScreen
)

type tickMsg time.Time

type loadedMsg struct {
	path string
	err  error
}

// PlayerModel is the main Bubble Tea model.
type PlayerModel struct {
	ctx   context.Context
	ctl   Controller
	sched *visual.Scheduler
	path  string

	keys    keyMap
	help    help.Model
	devices DeviceListModel
	screen  screen

	width, height int
	frame         visual.Frame
	loading       bool
	status        string
	err           error
}

// NewPlayerModel creates a player that loads path on start when it is set.
func NewPlayerModel(ctx context.Context, ctl Controller, sched *visual.Scheduler, path string) PlayerModel {
	return PlayerModel{
		ctx:     ctx,
		ctl:     ctl,
		sched:   sched,
		path:    path,
		keys:    defaultKeyMap(),
		help:    help.New(),
		devices: NewDeviceListModel(),
		width:   80,
		height:  24,
		loading: path != "",
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// loadCmd decodes off the render loop and starts playback on success.
func loadCmd(ctx context.Context, ctl Controller, path string) tea.Cmd {
	return func() tea.Msg {
		if err := ctl.Load(ctx, path); err != nil {
			return loadedMsg{path: path, err: err}
		}
		return loadedMsg{path: path, err: ctl.Play()}
	}
}

// Init starts the refresh timer and the initial load.
func (m PlayerModel) Init() tea.Cmd {
	if m.path == "" {
		return tick()
	}
	return tea.Batch(tick(), loadCmd(m.ctx, m.ctl, m.path))
}

// Update handles input and updates the model
func (m PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.devices.resize(msg.Width, msg.Height)
		return m, nil

	case tickMsg:
		m.frame = m.sched.Latest()
		return m, tick()

	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = "Loaded " + filepath.Base(msg.path)
		return m, nil

	case deviceSelectedMsg:
		m.screen = playerScreen
		if err := m.ctl.SetOutputDevice(msg.id); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.status = "Output: " + msg.name
		return m, nil

	case devicesClosedMsg:
		m.screen = playerScreen
		return m, nil
	}

	if m.screen == deviceScreen {
		var cmd tea.Cmd
		m.devices, cmd = m.devices.Update(msg)
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(msg)
	}
	return m, nil
}

func (m PlayerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.PlayPause):
		if m.ctl.State() == audio.Playing {
			m.ctl.Pause()
			return m, nil
		}
		m.err = m.ctl.Play()

	case key.Matches(msg, m.keys.Stop):
		m.err = m.ctl.Stop()

	case key.Matches(msg, m.keys.SeekBack):
		m.seekBy(-seekStep)

	case key.Matches(msg, m.keys.SeekFwd):
		m.seekBy(seekStep)

	case key.Matches(msg, m.keys.VolUp):
		m.ctl.SetVolume(m.ctl.Volume() + volumeStep)

	case key.Matches(msg, m.keys.VolDown):
		m.ctl.SetVolume(m.ctl.Volume() - volumeStep)

	case key.Matches(msg, m.keys.NextStyle):
		m.status = "Style: " + m.sched.Next().Name()

	case key.Matches(msg, m.keys.Devices):
		m.screen = deviceScreen
		m.devices.activeScreen = ListScreen
		return m, m.devices.Init()
	}
	return m, nil
}

func (m *PlayerModel) seekBy(delta float64) {
	total := m.ctl.TotalTime()
	if total <= 0 {
		return
	}
	f := m.ctl.CurrentTime()/total + delta
	m.ctl.Seek(max(0, min(1, f)))
}

// View renders the UI
func (m PlayerModel) View() string {
	if m.screen == deviceScreen {
		return m.devices.View()
	}

	var sb strings.Builder
	title := "audioviz"
	if m.path != "" {
		title += " • " + filepath.Base(m.path)
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")

	w, h := max(m.width, 16), max(m.height-chromeRows, 4)
	if m.loading {
		sb.WriteString(lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, infoStyle.Render("Loading...")))
	} else {
		sb.WriteString(renderFrame(m.frame, w, h))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.statusLine())
	sb.WriteByte('\n')
	sb.WriteString(progressBar(m.ctl.CurrentTime(), m.ctl.TotalTime(), w))
	sb.WriteByte('\n')

	switch {
	case m.err != nil:
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	case m.status != "":
		sb.WriteString(dimStyle.Render(m.status))
	}
	sb.WriteByte('\n')
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m PlayerModel) statusLine() string {
	var icon string
	switch m.ctl.State() {
	case audio.Playing:
		icon = "▶"
	case audio.Paused:
		icon = "⏸"
	default:
		icon = "■"
	}

	style := m.frame.Style
	if style == "" {
		style = m.sched.Active().Name()
	}

	line := fmt.Sprintf("%s %-7s  %s / %s  vol %3.0f%%  style %s",
		icon, m.ctl.State(),
		formatTime(m.ctl.CurrentTime()), formatTime(m.ctl.TotalTime()),
		m.ctl.Volume()*100, style)
	line = infoStyle.Render(line)
	if m.frame.Beat {
		line += "  " + beatStyle.Render("● beat")
	}
	return line
}

func progressBar(current, total float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = int(float64(width) * max(0, min(1, current/total)))
	}
	return highlightStyle.Render(strings.Repeat("━", filled)) +
		dimStyle.Render(strings.Repeat("─", width-filled))
}

// formatTime renders seconds as mm:ss.
func formatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// Run starts the player and blocks until the user quits.
func Run(ctx context.Context, ctl Controller, sched *visual.Scheduler, path string) error {
	p := tea.NewProgram(
		NewPlayerModel(ctx, ctl, sched, path),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
