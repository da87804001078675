// SPDX-License-Identifier: MIT
package config

import "time"

// BinSize returns the frequency resolution of one analysis frame in Hz.
func (c *Config) BinSize() float64 {
	return float64(c.Analysis.SampleRate) / float64(c.Analysis.FFTSize)
}

// SpectrumLen returns the number of bins produced per frame, fft_size/2+1.
func (c *Config) SpectrumLen() int {
	return c.Analysis.FFTSize/2 + 1
}

// FrameDuration returns the audio time covered by one analysis frame.
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.Analysis.FFTSize) * time.Second / time.Duration(c.Analysis.SampleRate)
}

// WebSocketEnabled reports whether a WebSocket address is configured.
func (c *Config) WebSocketEnabled() bool {
	return c.Transport.WebSocketAddress != ""
}
