// SPDX-License-Identifier: MIT
package audio

import "github.com/gordonklaus/portaudio"

// Device represents an audio device
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// Kind describes the directions the device supports.
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "Unavailable"
	}
}

// CanCapture reports whether the device can capture at sampleRate with the
// given channel count. PortAudio resamples on most hosts, so only the
// channel count is checked strictly.
func (d Device) CanCapture(channels int) bool {
	return d.MaxInputChannels >= channels && channels > 0
}

// GetDevices initializes PortAudio, lists every device and terminates it
// again. Use HostDevices when PortAudio is already initialized.
func GetDevices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()
	return HostDevices()
}

func deviceFromInfo(id int, info *portaudio.DeviceInfo) Device {
	return Device{
		ID:                id,
		Name:              info.Name,
		MaxInputChannels:  info.MaxInputChannels,
		MaxOutputChannels: info.MaxOutputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
	}
}
