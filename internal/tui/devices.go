// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"audioviz/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ScreenType defines which device screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	DetailScreen
)

// DeviceListModel represents the Bubble Tea model for browsing output devices.
// Embedded in the player, Enter selects a device; standalone it opens the
// device details.
type DeviceListModel struct {
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType
	standalone    bool

	fetch func() ([]audio.Device, error)
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// deviceSelectedMsg asks the player to switch output to the device.
type deviceSelectedMsg struct {
	id   int
	name string
}

// devicesClosedMsg returns the player to its main screen.
type devicesClosedMsg struct{}

var (
	upKey    = key.NewBinding(key.WithKeys("up", "k"))
	downKey  = key.NewBinding(key.WithKeys("down", "j"))
	enterKey = key.NewBinding(key.WithKeys("enter"))
	backKey  = key.NewBinding(key.WithKeys("esc"))
	quitKey  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
)

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	return m.fetchDevices
}

// fetchDevices gets the available output devices
func (m DeviceListModel) fetchDevices() tea.Msg {
	fetch := m.fetch
	if fetch == nil {
		fetch = audio.HostDevices
	}
	all, err := fetch()
	if err != nil {
		return errMsg{err}
	}
	var outputs []audio.Device
	for _, d := range all {
		if d.CanOutput() {
			outputs = append(outputs, d)
		}
	}
	return devicesMsg{outputs}
}

func (m *DeviceListModel) resize(width, height int) {
	if !m.ready {
		m.viewport = viewport.New(width, max(height-4, 1))
		m.viewport.Style = lipgloss.NewStyle()
		m.ready = true
		m.refresh()
		return
	}
	m.viewport.Width = width
	m.viewport.Height = max(height-4, 1)
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == DetailScreen && len(m.devices) > 0 {
		m.viewport.SetContent(m.renderDeviceDetail())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (DeviceListModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case devicesMsg:
		m.devices = msg.devices
		m.err = nil
		m.selectedIndex = min(m.selectedIndex, max(len(m.devices)-1, 0))
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, upKey):
				if m.selectedIndex > 0 {
					m.selectedIndex--
					m.refresh()
				}

			case key.Matches(msg, downKey):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
					m.refresh()
				}

			case key.Matches(msg, enterKey):
				if len(m.devices) == 0 {
					break
				}
				if m.standalone {
					m.activeScreen = DetailScreen
					m.refresh()
					break
				}
				d := m.devices[m.selectedIndex]
				return m, func() tea.Msg { return deviceSelectedMsg{id: d.ID, name: d.Name} }

			case key.Matches(msg, backKey):
				if !m.standalone {
					return m, func() tea.Msg { return devicesClosedMsg{} }
				}
			}

		case DetailScreen:
			if key.Matches(msg, backKey) {
				m.activeScreen = ListScreen
				m.refresh()
			}
		}
	}

	// Handle viewport updates
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s\n\n%s",
			titleStyle.Render("Output Devices"),
			errorStyle.Render(fmt.Sprintf("Error: %v", m.err)),
			infoStyle.Render("Esc: Back • q: Quit"))
	}

	var title, help string

	switch {
	case m.activeScreen == DetailScreen:
		title = titleStyle.Render("Device Details")
		help = infoStyle.Render("Esc: Back • q: Quit")
	case m.standalone:
		title = titleStyle.Render("Output Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Details • q: Quit")
	default:
		title = titleStyle.Render("Output Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Use device • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	var sb strings.Builder

	if len(m.devices) == 0 {
		return "No output devices found."
	}

	for i, device := range m.devices {
		marker := ""
		if device.IsDefaultOutput {
			marker = " (default)"
		}
		deviceInfo := fmt.Sprintf("[%d] %s%s\n", device.ID, device.Name, marker)
		deviceInfo += fmt.Sprintf("    Output channels: %d, Default sample rate: %.0f Hz\n",
			device.MaxOutputChannels, device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderDeviceDetail formats the detail screen for the selected device
func (m DeviceListModel) renderDeviceDetail() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "%s\n\n", highlightStyle.Render(device.Name))
	fmt.Fprintf(&sb, "  ID:                  %d\n", device.ID)
	if device.HostAPI != "" {
		fmt.Fprintf(&sb, "  Host API:            %s\n", device.HostAPI)
	}
	fmt.Fprintf(&sb, "  Output channels:     %d\n", device.MaxOutputChannels)
	fmt.Fprintf(&sb, "  Input channels:      %d\n", device.MaxInputChannels)
	fmt.Fprintf(&sb, "  Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
	fmt.Fprintf(&sb, "  Low latency:         %v\n", device.DefaultLowOutputLatency)
	fmt.Fprintf(&sb, "  High latency:        %v\n", device.DefaultHighOutputLatency)
	fmt.Fprintf(&sb, "\nUse it with --device %d\n", device.ID)

	return sb.String()
}

// NewDeviceListModel creates a device list for use inside the player.
func NewDeviceListModel() DeviceListModel {
	return DeviceListModel{
		selectedIndex: 0,
		activeScreen:  ListScreen,
	}
}

// standaloneModel adapts DeviceListModel to tea.Model.
type standaloneModel struct {
	DeviceListModel
}

func (s standaloneModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := s.DeviceListModel.Update(msg)
	return standaloneModel{m}, cmd
}

// StartDeviceListUI launches the Bubble Tea TUI for browsing output devices.
// PortAudio must be initialised.
func StartDeviceListUI() error {
	m := NewDeviceListModel()
	m.standalone = true
	p := tea.NewProgram(
		standaloneModel{m},
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
