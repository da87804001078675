// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"voicefft/internal/analysis"
	"voicefft/internal/voice"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultRefresh is the meter redraw interval.
const DefaultRefresh = 50 * time.Millisecond

const labelWidth = 12

var (
	labelStyle = lipgloss.NewStyle().
			Width(labelWidth).
			Foreground(lipgloss.Color("#A8A8A8"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F25D94")).
			Bold(true)
)

type meterKeyMap struct {
	Quit  key.Binding
	Pause key.Binding
}

var meterKeys = meterKeyMap{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Pause: key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause")),
}

type tickMsg time.Time

// MeterModel draws the latest feature vector of a VoiceResultProvider as one
// bar per band, with total energy and formants underneath.
type MeterModel struct {
	source   analysis.VoiceResultProvider
	interval time.Duration
	current  voice.VoiceVariables
	peak     float64 // Highest total energy seen
	bars     []progress.Model
	paused   bool
	status   string
	err      error
}

// NewMeterModel polls source every interval. status is shown under the title.
func NewMeterModel(source analysis.VoiceResultProvider, interval time.Duration, status string) MeterModel {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	n := source.NumBands()
	bars := make([]progress.Model, n)
	for i := range bars {
		bars[i] = progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40))
	}
	return MeterModel{
		source:   source,
		interval: interval,
		current:  voice.Zero(n),
		bars:     bars,
		status:   status,
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MeterModel) Init() tea.Cmd {
	return tick(m.interval)
}

func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := max(msg.Width-labelWidth-4, 10)
		for i := range m.bars {
			m.bars[i].Width = width
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, meterKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, meterKeys.Pause):
			m.paused = !m.paused
		}

	case tickMsg:
		if !m.paused {
			if err := m.source.LatestInto(&m.current); err != nil {
				m.err = err
			}
			m.peak = max(m.peak, m.current.TotalEnergy)
		}
		return m, tick(m.interval)
	}

	return m, nil
}

func (m MeterModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Voice Spectrum"))
	if m.paused {
		sb.WriteString(" " + pausedStyle.Render("PAUSED"))
	}
	sb.WriteString("\n")
	if m.status != "" {
		sb.WriteString(infoStyle.Render(m.status) + "\n")
	}
	sb.WriteString("\n")

	for i, bar := range m.bars {
		var v float64
		if i < len(m.current.Bands) {
			v = m.current.Bands[i]
		}
		sb.WriteString(labelStyle.Render(bandLabel(i)))
		sb.WriteString(bar.ViewAs(v))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Energy   %s  (peak %.2f)\n",
		valueStyle.Render(fmt.Sprintf("%8.2f", m.current.TotalEnergy)), m.peak))
	sb.WriteString("Formants ")
	for i, f := range m.current.Formants {
		if i > 0 {
			sb.WriteString("  ")
		}
		label := fmt.Sprintf("F%d ", i+1)
		if f == 0 {
			sb.WriteString(label + "   -   ")
		} else {
			sb.WriteString(label + valueStyle.Render(fmt.Sprintf("%4.0f Hz", f)))
		}
	}
	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString(fmt.Sprintf("\nError: %v\n", m.err))
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("p: Pause • q: Quit"))
	return sb.String()
}

// bandLabel names the voice bands and numbers any extra ones.
func bandLabel(i int) string {
	if i < len(voice.VoiceBands) {
		return voice.VoiceBands[i].Name
	}
	return fmt.Sprintf("band %d", i)
}

// RunMeter shows the meter until the user quits.
func RunMeter(source analysis.VoiceResultProvider, interval time.Duration, status string) error {
	p := tea.NewProgram(
		NewMeterModel(source, interval, status),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
