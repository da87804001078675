// SPDX-License-Identifier: MIT
//
// Package tui holds the Bubble Tea views: a device picker used before capture
// and the live voice spectrum meter.
package tui

import (
	"fmt"
	"slices"
	"strings"

	"voicefft/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// Rows reserved for the title and help line around the viewport.
const pickerChrome = 4

type pickerScreen int

const (
	screenDevices pickerScreen = iota
	screenRate
)

// Capture sample rates offered once a device is chosen.
var availableSampleRates = []int{8000, 16000, 22050, 44100, 48000}

type pickerKeyMap struct {
	Quit    key.Binding
	Up      key.Binding
	Down    key.Binding
	Confirm key.Binding
	Back    key.Binding
}

var pickerKeys = pickerKeyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
	Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
}

// Selection is the outcome of the device picker.
type Selection struct {
	DeviceID   int
	SampleRate int
	Confirmed  bool // False when the picker was left without choosing
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// DeviceListModel lets the user choose a capture device and then a sample
// rate for it.
type DeviceListModel struct {
	fetch     func() ([]audio.Device, error)
	devices   []audio.Device
	cursor    int // Highlighted device
	rateIndex int // Highlighted entry of availableSampleRates
	screen    pickerScreen
	viewport  viewport.Model
	ready     bool
	err       error
	selection Selection
}

// NewDeviceListModel creates a device picker listing the devices returned
// by fetch. sampleRate preselects the rate screen when it is one of the
// offered rates.
func NewDeviceListModel(fetch func() ([]audio.Device, error), sampleRate int) DeviceListModel {
	return DeviceListModel{
		fetch:     fetch,
		screen:    screenDevices,
		selection: Selection{SampleRate: sampleRate},
	}
}

// Selection returns the chosen device and sample rate.
func (m DeviceListModel) Selection() Selection {
	return m.selection
}

// Init loads the device list. Devices without input channels are dropped.
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{slices.DeleteFunc(devices, func(d audio.Device) bool { return !d.CanCapture(1) })}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-pickerChrome)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - pickerChrome
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if m.err != nil || key.Matches(msg, pickerKeys.Quit) {
			return m, tea.Quit
		}
		var done bool
		if m.screen == screenDevices {
			m.updateDevices(msg)
		} else {
			done = m.updateRate(msg)
		}
		if done {
			return m, tea.Quit
		}
		m.refresh()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *DeviceListModel) updateDevices(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, pickerKeys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, pickerKeys.Down):
		m.cursor = min(m.cursor+1, max(len(m.devices)-1, 0))
	case key.Matches(msg, pickerKeys.Confirm):
		if len(m.devices) == 0 {
			return
		}
		m.screen = screenRate
		m.rateIndex = m.initialRateIndex(m.devices[m.cursor])
	}
}

// updateRate reports true once a rate has been confirmed.
func (m *DeviceListModel) updateRate(msg tea.KeyMsg) bool {
	switch {
	case key.Matches(msg, pickerKeys.Back):
		m.screen = screenDevices
	case key.Matches(msg, pickerKeys.Up):
		m.rateIndex = max(m.rateIndex-1, 0)
	case key.Matches(msg, pickerKeys.Down):
		m.rateIndex = min(m.rateIndex+1, len(availableSampleRates)-1)
	case key.Matches(msg, pickerKeys.Confirm):
		m.selection = Selection{
			DeviceID:   m.devices[m.cursor].ID,
			SampleRate: availableSampleRates[m.rateIndex],
			Confirmed:  true,
		}
		return true
	}
	return false
}

// initialRateIndex prefers the requested rate, then the device default,
// then the first offered rate.
func (m DeviceListModel) initialRateIndex(d audio.Device) int {
	if i := slices.Index(availableSampleRates, m.selection.SampleRate); i >= 0 {
		return i
	}
	return max(slices.Index(availableSampleRates, int(d.DefaultSampleRate)), 0)
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.screen == screenDevices {
		m.viewport.SetContent(m.renderDevices())
	} else {
		m.viewport.SetContent(m.renderRates())
	}
}

func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}

	title, help := "Input Devices", "↑/↓: Navigate • Enter: Choose • q: Quit"
	if m.screen == screenRate {
		title, help = "Capture Settings", "↑/↓: Change Rate • Enter: Start • Esc: Back • q: Quit"
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", titleStyle.Render(title), m.viewport.View(), infoStyle.Render(help))
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s (%s)\n    %d input channels, %.0f Hz default\n",
			d.ID, d.Name, d.Kind(), d.MaxInputChannels, d.DefaultSampleRate)
		if i == m.cursor {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (m DeviceListModel) renderRates() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configure Device: %s\n\nSample Rate:\n", m.devices[m.cursor].Name)
	for i, rate := range availableSampleRates {
		if i == m.rateIndex {
			sb.WriteString(highlightStyle.Render(fmt.Sprintf("  ▶ %d Hz", rate)))
		} else {
			fmt.Fprintf(&sb, "    %d Hz", rate)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// SelectDevice runs the picker over the PortAudio host devices. PortAudio
// must be initialized.
func SelectDevice(sampleRate int) (Selection, error) {
	final, err := tea.NewProgram(NewDeviceListModel(audio.HostDevices, sampleRate), tea.WithAltScreen()).Run()
	if err != nil {
		return Selection{}, err
	}
	return final.(DeviceListModel).Selection(), nil
}
