// SPDX-License-Identifier: MIT
/*
Package audio captures microphone input through PortAudio and feeds it to an
analysis processor.

The capture callback:
- Copies the interleaved input into a pre-allocated buffer
- Skips frames whose peak amplitude is below the noise gate
- Downmixes multi-channel input to mono by averaging
- Hands the mono frame to the processor and, when recording, to a WAV encoder

The package also reads and writes WAV files for offline analysis.
*/
package audio

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"voicefft/internal/analysis"
	"voicefft/internal/config"
	applog "voicefft/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

var engineLog = applog.Named("engine")

type Engine struct {
	// Core configuration and state.
	config    *config.Config
	processor analysis.AudioProcessor

	// Audio input handling.
	inputBuffer  []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream
	monoBuffer   []int32 // Downmixed frame handed to the processor

	// Noise gate for signal conditioning.
	gateEnabled   bool
	gateThreshold int32 // Absolute amplitude threshold (0-2147483647)

	frames atomic.Uint64 // Frames handed to the processor
	gated  atomic.Uint64 // Frames dropped by the gate

	// Recording state and buffers.
	recMu        sync.Mutex
	isRecording  int32 // Atomic flag checked by the callback before taking recMu
	outputFile   *os.File
	wavEncoder   *wav.Encoder
	sampleBuf    *audio.IntBuffer // Reusable buffer for format conversion
	recordShift  uint             // Right shift from int32 to the recording bit depth
	recorded     int              // Frames written to the current recording
	maxRecFrames int              // 0 for unlimited
}

// NewEngine resolves the configured input device and prepares an engine
// that feeds captured frames to processor. The stream is not opened until
// StartInputStream.
func NewEngine(cfg *config.Config, processor analysis.AudioProcessor) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	if inputDevice.MaxInputChannels < cfg.Audio.InputChannels {
		engineLog.Warnf("device %q has %d input channels, %d requested",
			inputDevice.Name, inputDevice.MaxInputChannels, cfg.Audio.InputChannels)
	}

	e := newEngine(cfg, processor)
	e.inputDevice = inputDevice
	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	engineLog.Infof("input device %q, %d ch @ %d Hz, %d frames/buffer, latency %s",
		inputDevice.Name, cfg.Audio.InputChannels, cfg.Analysis.SampleRate,
		cfg.Audio.FramesPerBuffer, e.inputLatency)
	return e, nil
}

// newEngine allocates the buffers and gate state without touching PortAudio.
func newEngine(cfg *config.Config, processor analysis.AudioProcessor) *Engine {
	frames := cfg.Audio.FramesPerBuffer
	e := &Engine{
		config:      cfg,
		processor:   processor,
		inputBuffer: make([]int32, frames*cfg.Audio.InputChannels),
		monoBuffer:  make([]int32, frames),
	}
	if cfg.Audio.GateThreshold > 0 {
		e.gateEnabled = true
		e.SetGateThreshold(cfg.Audio.GateThreshold)
	}
	return e
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Audio.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      float64(e.config.Analysis.SampleRate),
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}

	engineLog.Debugf("input stream started")
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
		engineLog.Debugf("input stream stopped after %d frames (%d gated)", e.frames.Load(), e.gated.Load())
	}

	return nil
}

// Frames returns the number of frames handed to the processor.
func (e *Engine) Frames() uint64 { return e.frames.Load() }

// Gated returns the number of frames the noise gate dropped.
func (e *Engine) Gated() uint64 { return e.gated.Load() }

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer)

	if atomic.LoadInt32(&e.isRecording) == 1 {
		e.writeRecording(e.inputBuffer)
	}
}

// processBuffer gates, downmixes and analyzes one interleaved buffer.
func (e *Engine) processBuffer(buffer []int32) {
	if e.processor == nil {
		return
	}
	if e.gateEnabled && peakAmplitude(buffer) <= e.gateThreshold {
		e.gated.Add(1)
		return
	}

	e.processor.Process(e.downmix(buffer))
	e.frames.Add(1)
}

// downmix averages interleaved channels into monoBuffer. Mono input is
// returned as is.
func (e *Engine) downmix(buffer []int32) []int32 {
	channels := e.config.Audio.InputChannels
	if channels <= 1 {
		return buffer
	}
	for i := range e.monoBuffer {
		base := i * channels
		if base+channels > len(buffer) {
			e.monoBuffer[i] = 0 // Safety fallback
			continue
		}
		var sum int64
		for c := range channels {
			sum += int64(buffer[base+c])
		}
		e.monoBuffer[i] = int32(sum / int64(channels))
	}
	return e.monoBuffer
}
