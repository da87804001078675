// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"voicefft/internal/analysis"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RecordingPath returns a timestamped WAV path inside dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "voice-"+now.Format("20060102-150405")+".wav")
}

// StartRecording writes the captured input to filename at the configured
// bit depth until StopRecording is called or the maximum duration passes.
func (e *Engine) StartRecording(filename string) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	bitDepth := e.config.Recording.BitDepth
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	channels := e.config.Audio.InputChannels
	sampleRate := e.config.Analysis.SampleRate
	e.wavEncoder = wav.NewEncoder(file, sampleRate, bitDepth, channels, 1)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, e.config.Audio.FramesPerBuffer*channels),
		SourceBitDepth: bitDepth,
	}
	e.recordShift = uint(32 - bitDepth)
	e.recorded = 0
	e.maxRecFrames = e.config.Recording.MaxDuration * sampleRate

	atomic.StoreInt32(&e.isRecording, 1)
	engineLog.Infof("recording to %s (%d-bit, %d ch)", filename, bitDepth, channels)

	return nil
}

func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	return e.stopRecordingLocked()
}

// IsRecording reports whether a recording is in progress.
func (e *Engine) IsRecording() bool {
	return atomic.LoadInt32(&e.isRecording) == 1
}

func (e *Engine) stopRecordingLocked() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		name := e.outputFile.Name()
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
		engineLog.Infof("recording saved to %s (%d frames)", name, e.recorded)
	}

	return nil
}

// writeRecording appends one interleaved buffer to the WAV encoder and ends
// the recording once the maximum duration is reached.
func (e *Engine) writeRecording(buffer []int32) {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if e.wavEncoder == nil {
		return
	}

	n := min(len(buffer), cap(e.sampleBuf.Data))
	e.sampleBuf.Data = e.sampleBuf.Data[:n]
	for i := range n {
		e.sampleBuf.Data[i] = int(buffer[i] >> e.recordShift)
	}

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		engineLog.Errorf("error writing to WAV file: %v", err)
		return
	}

	e.recorded += n / e.sampleBuf.Format.NumChannels
	if e.maxRecFrames > 0 && e.recorded >= e.maxRecFrames {
		engineLog.Infof("maximum recording duration of %ds reached", e.config.Recording.MaxDuration)
		if err := e.stopRecordingLocked(); err != nil {
			engineLog.Errorf("error stopping recording: %v", err)
		}
	}
}

func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}

	if err := e.StopInputStream(); err != nil {
		return err
	}

	if c, ok := e.processor.(analysis.ClosableProcessor); ok {
		return c.Close()
	}
	return nil
}
