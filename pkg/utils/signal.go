// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"
)

// MockTransport records every value passed to Send. It satisfies the
// transport interface used by the analyzers.
type MockTransport struct {
	mu       sync.Mutex
	Messages []any
	Closed   bool
}

// Send stores data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Count returns the number of values sent so far.
func (m *MockTransport) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// Last returns the most recent value, or nil.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return nil
	}
	return m.Messages[len(m.Messages)-1]
}

// GenerateSine returns size samples of a sine at frequency Hz with the given
// peak amplitude.
func GenerateSine(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// GenerateVowel returns a crude voiced vowel: a 150 Hz fundamental plus
// partials near the first three formants of /a/.
func GenerateVowel(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = 0.4*math.Sin(2*math.Pi*150*t) +
			0.3*math.Sin(2*math.Pi*750*t) +
			0.2*math.Sin(2*math.Pi*1250*t) +
			0.1*math.Sin(2*math.Pi*2650*t)
	}
	return buffer
}

// GenerateSineWave returns size int32 samples of a sine at 90% of full scale,
// the format delivered by the capture engine.
func GenerateSineWave(size int, sampleRate, frequency float64) []int32 {
	return ToInt32(GenerateSine(size, sampleRate, frequency, 0.9))
}

// ToInt32 scales samples in [-1, 1] to int32 full scale.
func ToInt32(samples []float64) []int32 {
	out := make([]int32, len(samples))
	for i, s := range samples {
		out[i] = int32(max(-1, min(1, s)) * math.MaxInt32)
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	startBin = max(startBin, 0)
	endBin = min(endBin, len(magnitudes)-1)

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
