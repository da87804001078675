// SPDX-License-Identifier: MIT
//
// Package voice reduces a complex spectrum to the features used to drive voice
// visualizations: eight band energies, three formant estimates and the total
// loudness. Feature extraction is advisory, so degenerate input produces a
// zero result instead of an error.
package voice

import (
	"math"
	"math/cmplx"

	"voicefft/internal/errs"
)

const (
	// DefaultSampleRate matches the 16 kHz mono capture used for speech.
	DefaultSampleRate = 16000

	// DefaultNumBands is the length of the band vector when the caller does
	// not ask for another one.
	DefaultNumBands = 8

	// MaxNumBands caps the requested band vector length.
	MaxNumBands = 256

	// NumFormants is the number of formant slots filled by Analyze.
	NumFormants = 3

	// compression is the exponent applied to max-normalized band energies.
	compression = 0.7
)

// Band is an inclusive frequency range in Hz with its gain.
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
	Gain   float64
}

// VoiceBands covers fundamentals through high-frequency speech content. Gains
// decrease with frequency to emphasize fundamentals.
var VoiceBands = [DefaultNumBands]Band{
	{Name: "male_f0", LowHz: 85, HighHz: 255, Gain: 1.8},
	{Name: "female_f0", LowHz: 256, HighHz: 500, Gain: 1.6},
	{Name: "f1", LowHz: 501, HighHz: 1000, Gain: 1.4},
	{Name: "f2_low", LowHz: 1001, HighHz: 1500, Gain: 1.3},
	{Name: "f2_high", LowHz: 1501, HighHz: 2000, Gain: 1.2},
	{Name: "f3_low", LowHz: 2001, HighHz: 2500, Gain: 1.1},
	{Name: "f3_high", LowHz: 2501, HighHz: 3000, Gain: 1.0},
	{Name: "high", LowHz: 3001, HighHz: 3400, Gain: 0.9},
}

// formantRule maps the peak frequency of a band to a formant slot. When
// nonZeroOnly is set a band with no peak leaves the slot untouched.
type formantRule struct {
	band        int
	slot        int
	nonZeroOnly bool
}

// formantRules is applied in order, so the later band of a pair wins when
// both have a peak.
var formantRules = []formantRule{
	{band: 2, slot: 0},
	{band: 3, slot: 1, nonZeroOnly: true},
	{band: 4, slot: 1, nonZeroOnly: true},
	{band: 5, slot: 2, nonZeroOnly: true},
	{band: 6, slot: 2, nonZeroOnly: true},
}

// VoiceVariables is the feature vector of one frame.
type VoiceVariables struct {
	TotalEnergy float64              `json:"total_energy"` // sum of gained band energies, before normalization
	Bands       []float64            `json:"bands"`        // normalized to [0,1], loudest band is 1
	Formants    [NumFormants]float64 `json:"formants"`     // peak frequencies in Hz, 0 when absent
}

// Zero returns the degenerate result: no energy and an all-zero band vector.
func Zero(numBands int) VoiceVariables {
	return VoiceVariables{Bands: make([]float64, resolveBands(numBands))}
}

// IsZero reports whether v carries no energy.
func (v VoiceVariables) IsZero() bool {
	return v.TotalEnergy == 0
}

// Extractor holds the immutable analysis configuration. It keeps no per-call
// state and is safe for concurrent use.
type Extractor struct {
	sampleRate int
	bands      [DefaultNumBands]Band
}

// NewExtractor returns an extractor for audio sampled at sampleRate Hz.
func NewExtractor(sampleRate int) (*Extractor, error) {
	if sampleRate <= 0 {
		return nil, errs.New(errs.InvalidArgument, "voice.NewExtractor", "sample rate must be positive, got %d", sampleRate)
	}
	return &Extractor{sampleRate: sampleRate, bands: VoiceBands}, nil
}

// SampleRate returns the configured sample rate in Hz.
func (e *Extractor) SampleRate() int { return e.sampleRate }

// Bands returns a copy of the band table.
func (e *Extractor) Bands() [DefaultNumBands]Band { return e.bands }

// Analyze computes the features of spectrum, where bin i is at i*binSize Hz.
// The band vector has numBands entries (DefaultNumBands when numBands <= 0):
// the eight table bands are always computed, extra entries stay zero and
// surplus table bands only contribute to TotalEnergy.
func (e *Extractor) Analyze(spectrum []complex128, binSize float64, numBands int) VoiceVariables {
	out := Zero(numBands)
	if len(spectrum) == 0 || !(binSize > 0) || math.IsInf(binSize, 0) {
		return out
	}

	var (
		energies [DefaultNumBands]float64
		peaks    [DefaultNumBands]float64
	)
	for b, band := range e.bands {
		var energy, peakMag, peakFreq float64
		for i, c := range spectrum {
			freq := float64(i) * binSize
			if freq < band.LowHz || freq > band.HighHz {
				continue
			}
			mag := cmplx.Abs(c)
			energy += mag
			if mag > peakMag {
				peakMag = mag
				peakFreq = freq
			}
		}
		energies[b] = energy * band.Gain
		peaks[b] = peakFreq
		out.TotalEnergy += energies[b]
	}

	out.Formants = assignFormants(peaks)

	if !(out.TotalEnergy > 0) || math.IsInf(out.TotalEnergy, 0) {
		return Zero(numBands)
	}

	var maxEnergy float64
	for _, v := range energies {
		maxEnergy = math.Max(maxEnergy, v)
	}
	for b := range min(len(out.Bands), len(energies)) {
		out.Bands[b] = math.Pow(energies[b]/maxEnergy, compression)
	}
	return out
}

// ProcessRawBytes interprets data as interleaved unsigned 8-bit (real,
// imaginary) pairs and analyzes them with binSize = sampleRate/(2*pairs). An
// empty or odd-length stream yields the zero result.
func (e *Extractor) ProcessRawBytes(data []byte, numBands int) VoiceVariables {
	if len(data) == 0 || len(data)%2 != 0 {
		return Zero(numBands)
	}
	spectrum := make([]complex128, len(data)/2)
	for i := range spectrum {
		spectrum[i] = complex(float64(data[2*i]), float64(data[2*i+1]))
	}
	binSize := float64(e.sampleRate) / float64(2*len(spectrum))
	return e.Analyze(spectrum, binSize, numBands)
}

// BinSize returns the frequency resolution of a spectrum of the given length
// produced by a real forward transform of 2*(bins-1) samples.
func (e *Extractor) BinSize(bins int) float64 {
	if bins < 2 {
		return 0
	}
	return float64(e.sampleRate) / float64(2*(bins-1))
}

func assignFormants(peaks [DefaultNumBands]float64) [NumFormants]float64 {
	var formants [NumFormants]float64
	for _, r := range formantRules {
		f := peaks[r.band]
		if r.nonZeroOnly && f <= 0 {
			continue
		}
		formants[r.slot] = f
	}
	return formants
}

func resolveBands(numBands int) int {
	if numBands <= 0 {
		return DefaultNumBands
	}
	return min(numBands, MaxNumBands)
}
