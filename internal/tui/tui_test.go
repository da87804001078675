// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"voicefft/internal/audio"
	"voicefft/internal/voice"

	tea "github.com/charmbracelet/bubbletea"
)

type stubProvider struct {
	v voice.VoiceVariables
}

func (s *stubProvider) Latest() voice.VoiceVariables { return s.v }

func (s *stubProvider) LatestInto(dst *voice.VoiceVariables) error {
	dst.TotalEnergy = s.v.TotalEnergy
	dst.Formants = s.v.Formants
	copy(dst.Bands, s.v.Bands)
	return nil
}

func (s *stubProvider) NumBands() int { return len(s.v.Bands) }

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestMeterModelTick(t *testing.T) {
	src := &stubProvider{v: voice.VoiceVariables{
		TotalEnergy: 12.5,
		Bands:       []float64{1, 0.5, 0, 0, 0, 0, 0, 0},
		Formants:    [voice.NumFormants]float64{750, 1250, 0},
	}}
	m := NewMeterModel(src, 10*time.Millisecond, "device 0 @ 16000 Hz")

	if m.Init() == nil {
		t.Fatal("Init should schedule a tick")
	}

	next, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	m = next.(MeterModel)
	if m.current.TotalEnergy != 12.5 || m.current.Bands[1] != 0.5 || m.peak != 12.5 {
		t.Errorf("meter did not pick up the latest result: %+v", m.current)
	}

	view := m.View()
	for _, want := range []string{"Voice Spectrum", "device 0 @ 16000 Hz", "male_f0", "high", "12.50", "750 Hz", "1250 Hz"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestMeterModelPauseAndQuit(t *testing.T) {
	src := &stubProvider{v: voice.Zero(8)}
	m := NewMeterModel(src, 0, "")
	if m.interval != DefaultRefresh {
		t.Errorf("interval = %s, want %s", m.interval, DefaultRefresh)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = next.(MeterModel)
	if !m.paused || !strings.Contains(m.View(), "PAUSED") {
		t.Fatal("p should pause the meter")
	}

	src.v.TotalEnergy = 3
	next, _ = m.Update(tickMsg(time.Now()))
	m = next.(MeterModel)
	if m.current.TotalEnergy != 0 {
		t.Error("paused meter should not refresh")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !isQuit(cmd) {
		t.Error("q should quit")
	}
}

func TestMeterModelExtraBands(t *testing.T) {
	src := &stubProvider{v: voice.Zero(10)}
	m := NewMeterModel(src, time.Second, "")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(MeterModel)

	if m.bars[0].Width != 80-labelWidth-4 {
		t.Errorf("bar width = %d, want %d", m.bars[0].Width, 80-labelWidth-4)
	}
	if !strings.Contains(m.View(), "band 9") {
		t.Error("bands past the voice table should be numbered")
	}
}

func testDevices() ([]audio.Device, error) {
	return []audio.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 1, Name: "Headset Mic", MaxInputChannels: 1, DefaultSampleRate: 16000},
		{ID: 2, Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 44100},
	}, nil
}

func TestDeviceListModelSelection(t *testing.T) {
	m := NewDeviceListModel(testDevices, 0)

	msg := m.Init()()
	devs, ok := msg.(devicesMsg)
	if !ok {
		t.Fatalf("Init produced %T, want devicesMsg", msg)
	}
	if len(devs.devices) != 2 {
		t.Fatalf("picker lists %d devices, want the 2 input devices", len(devs.devices))
	}

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model, _ = model.Update(devs)
	if !strings.Contains(model.View(), "Headset Mic (Input)") {
		t.Errorf("device list view:\n%s", model.View())
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(model.View(), "Configure Device: USB Interface") {
		t.Fatalf("config view:\n%s", model.View())
	}
	// USB Interface defaults to 44100; one step up is 22050.
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !isQuit(cmd) {
		t.Error("confirming should quit the picker")
	}

	sel := model.(DeviceListModel).Selection()
	if !sel.Confirmed || sel.DeviceID != 2 || sel.SampleRate != 22050 {
		t.Errorf("Selection() = %+v, want device 2 at 22050 Hz", sel)
	}
}

func TestDeviceListModelPreselectedRateAndQuit(t *testing.T) {
	m := NewDeviceListModel(testDevices, 8000)
	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	devs, _ := testDevices()
	model, _ = model.Update(devicesMsg{devs[1:]})

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if sel := model.(DeviceListModel).Selection(); sel.SampleRate != 8000 || sel.DeviceID != 1 {
		t.Errorf("Selection() = %+v, want device 1 at 8000 Hz", sel)
	}

	_, cmd := NewDeviceListModel(testDevices, 0).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !isQuit(cmd) {
		t.Error("q should quit")
	}
	if sel := NewDeviceListModel(testDevices, 0).Selection(); sel.Confirmed {
		t.Error("unconfirmed picker reported a selection")
	}
}

func TestDeviceListModelError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host") }, 0)
	msg := m.Init()()

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model, _ = model.Update(msg)
	if !strings.Contains(model.View(), "Error: no host") {
		t.Errorf("error view:\n%s", model.View())
	}
	if _, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter}); !isQuit(cmd) {
		t.Error("any key should quit after an error")
	}
}
