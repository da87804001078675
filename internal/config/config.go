// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the analyzer configuration.
const (
	// Analysis defaults: 16 kHz mono speech, 512-sample frames, 8 voice bands.
	DefaultSampleRate = 16000
	DefaultFFTSize    = 512
	DefaultNumBands   = 8

	// Voice activity defaults: RMS level and quiet frames before speech ends.
	DefaultActivityThreshold = 0.02
	DefaultActivityHangover  = 8

	// Capture defaults.
	DefaultDeviceID        = MinDeviceID // system default input device
	DefaultChannels        = 1
	DefaultFramesPerBuffer = DefaultFFTSize
	DefaultLowLatency      = false
	DefaultGateThreshold   = 0.0 // 0 disables the noise gate

	// Recording defaults.
	DefaultOutputDir = "./recordings"
	DefaultBitDepth  = 16

	// Transport defaults.
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultLogLevel         = "info"

	// Hardware and processing limits.
	MinDeviceID     = -1     // -1 represents the system default device
	MinSampleRate   = 8000   // Hz
	MaxSampleRate   = 192000 // Hz
	MaxFFTSize      = 65536
	MaxBufferFrames = 8192
	MaxChannels     = 32
	MaxNumBands     = 256
)
