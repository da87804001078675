// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"
	"sync/atomic"

	"voicefft/internal/errs"
	"voicefft/internal/fft"
	applog "voicefft/internal/log"
	"voicefft/internal/transport"
	"voicefft/internal/voice"
)

var frameLog = applog.Named("analysis")

// FrameAnalyzer turns fixed-size audio frames into voice features. It owns
// one transform plan and keeps the latest result for publishers.
//
// FrameAnalyzer implements AudioProcessor for the capture engine and
// VoiceResultProvider for the UDP publisher and the terminal meter.
type FrameAnalyzer struct {
	plan      *fft.Plan
	extractor *voice.Extractor
	numBands  int
	binSize   float64
	transport transport.Transport // optional, receives a copy of every result

	mu       sync.Mutex // guards the frame scratch buffers
	frame    []float64
	spectrum []complex128

	latestMu sync.RWMutex
	latest   voice.VoiceVariables

	frames atomic.Uint64
	closed atomic.Bool
}

// Compile-time checks for interface implementations.
var _ ClosableProcessor = (*FrameAnalyzer)(nil)
var _ VoiceResultProvider = (*FrameAnalyzer)(nil)

// NewFrameAnalyzer creates an analyzer for frames of fftSize samples at
// sampleRate Hz. The transport may be nil.
func NewFrameAnalyzer(fftSize, sampleRate, numBands int, t transport.Transport) (*FrameAnalyzer, error) {
	extractor, err := voice.NewExtractor(sampleRate)
	if err != nil {
		return nil, err
	}
	plan, err := fft.NewPlan(fftSize)
	if err != nil {
		return nil, err
	}
	if numBands <= 0 {
		numBands = voice.DefaultNumBands
	}

	frameLog.Infof("initializing frame analyzer (size %d, sample rate %d Hz, bands %d)", fftSize, sampleRate, numBands)

	return &FrameAnalyzer{
		plan:      plan,
		extractor: extractor,
		numBands:  numBands,
		binSize:   float64(sampleRate) / float64(fftSize),
		transport: t,
		frame:     make([]float64, fftSize),
		spectrum:  make([]complex128, plan.Bins()),
		latest:    voice.Zero(numBands),
	}, nil
}

// Process normalizes a captured int32 buffer to [-1, 1), zero-pads or
// truncates it to the frame size and analyzes it.
func (a *FrameAnalyzer) Process(inputBuffer []int32) {
	if a.closed.Load() {
		return
	}

	const normFactor = 1.0 / float64(0x80000000)

	a.mu.Lock()
	for i := range a.frame {
		if i < len(inputBuffer) {
			a.frame[i] = float64(inputBuffer[i]) * normFactor
		} else {
			a.frame[i] = 0
		}
	}
	result, err := a.analyzeFrameLocked()
	a.mu.Unlock()

	if err != nil {
		frameLog.Errorf("dropping frame: %v", err)
		return
	}
	a.publish(result)
}

// AnalyzeSamples analyzes one frame of samples in [-1, 1]. A frame whose
// length differs from FFTSize yields the zero result.
func (a *FrameAnalyzer) AnalyzeSamples(samples []float64) (voice.VoiceVariables, error) {
	const op = "analysis.AnalyzeSamples"
	if a.closed.Load() {
		return voice.VoiceVariables{}, errs.New(errs.IllegalState, op, "analyzer is closed")
	}
	if len(samples) != len(a.frame) {
		return voice.Zero(a.numBands), nil
	}

	a.mu.Lock()
	copy(a.frame, samples)
	result, err := a.analyzeFrameLocked()
	a.mu.Unlock()
	if err != nil {
		return voice.VoiceVariables{}, err
	}

	a.publish(result)
	return result, nil
}

// ProcessBytes analyzes one frame of signed 8-bit PCM. A frame whose length
// differs from FFTSize yields the zero result.
func (a *FrameAnalyzer) ProcessBytes(data []byte) (voice.VoiceVariables, error) {
	const op = "analysis.ProcessBytes"
	if a.closed.Load() {
		return voice.VoiceVariables{}, errs.New(errs.IllegalState, op, "analyzer is closed")
	}
	if len(data) != len(a.frame) {
		return voice.Zero(a.numBands), nil
	}

	a.mu.Lock()
	for i, b := range data {
		a.frame[i] = float64(int8(b)) / 128
	}
	result, err := a.analyzeFrameLocked()
	a.mu.Unlock()
	if err != nil {
		return voice.VoiceVariables{}, err
	}

	a.publish(result)
	return result, nil
}

// ProcessRawBytes analyzes interleaved unsigned 8-bit spectrum pairs
// produced elsewhere, bypassing the transform.
func (a *FrameAnalyzer) ProcessRawBytes(data []byte) (voice.VoiceVariables, error) {
	if a.closed.Load() {
		return voice.VoiceVariables{}, errs.New(errs.IllegalState, "analysis.ProcessRawBytes", "analyzer is closed")
	}
	result := a.extractor.ProcessRawBytes(data, a.numBands)
	a.publish(result)
	return result, nil
}

// analyzeFrameLocked transforms a.frame and extracts the features. The
// caller holds a.mu.
func (a *FrameAnalyzer) analyzeFrameLocked() (voice.VoiceVariables, error) {
	if err := a.plan.Spectrum(a.frame, a.spectrum); err != nil {
		return voice.VoiceVariables{}, err
	}
	return a.extractor.Analyze(a.spectrum, a.binSize, a.numBands), nil
}

func (a *FrameAnalyzer) publish(result voice.VoiceVariables) {
	a.latestMu.Lock()
	a.latest.TotalEnergy = result.TotalEnergy
	a.latest.Formants = result.Formants
	a.latest.Bands = append(a.latest.Bands[:0], result.Bands...)
	a.latestMu.Unlock()

	n := a.frames.Add(1)

	if a.transport != nil {
		if err := a.transport.Send(result); err != nil {
			frameLog.Warnf("transport send failed (frame %d): %v", n, err)
		}
	}
}

// Latest returns a copy of the most recent result.
func (a *FrameAnalyzer) Latest() voice.VoiceVariables {
	a.latestMu.RLock()
	defer a.latestMu.RUnlock()

	out := a.latest
	out.Bands = make([]float64, len(a.latest.Bands))
	copy(out.Bands, a.latest.Bands)
	return out
}

// LatestInto copies the most recent result into dst without allocating when
// dst.Bands has enough capacity.
func (a *FrameAnalyzer) LatestInto(dst *voice.VoiceVariables) error {
	if dst == nil {
		return fmt.Errorf("destination cannot be nil")
	}
	a.latestMu.RLock()
	defer a.latestMu.RUnlock()

	dst.TotalEnergy = a.latest.TotalEnergy
	dst.Formants = a.latest.Formants
	dst.Bands = append(dst.Bands[:0], a.latest.Bands...)
	return nil
}

// Frames returns the number of frames analyzed so far.
func (a *FrameAnalyzer) Frames() uint64 { return a.frames.Load() }

// FFTSize returns the frame length in samples.
func (a *FrameAnalyzer) FFTSize() int { return len(a.frame) }

// SampleRate returns the sample rate in Hz.
func (a *FrameAnalyzer) SampleRate() int { return a.extractor.SampleRate() }

// BinSize returns the width of one spectrum bin in Hz.
func (a *FrameAnalyzer) BinSize() float64 { return a.binSize }

// NumBands returns the length of the band vector.
func (a *FrameAnalyzer) NumBands() int { return a.numBands }

// Close destroys the plan. Later calls report errs.IllegalState and Process
// becomes a no-op. The transport is owned by the caller and stays open.
func (a *FrameAnalyzer) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	frameLog.Infof("closing frame analyzer after %d frames", a.frames.Load())
	a.plan.Destroy()
	return nil
}
