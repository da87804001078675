// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when the input is not a PCM WAV file.
var ErrInvalidWAV = errors.New("not a valid WAV file")

// Clip is a decoded WAV file downmixed to mono, with samples in [-1, 1].
type Clip struct {
	SampleRate int
	Channels   int // Channel count of the source file
	BitDepth   int
	Samples    []float64
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Frames splits the clip into consecutive frames of size samples. The last
// partial frame is zero-padded; full frames share the clip's storage.
func (c *Clip) Frames(size int) [][]float64 {
	if size <= 0 || len(c.Samples) == 0 {
		return nil
	}
	frames := make([][]float64, 0, (len(c.Samples)+size-1)/size)
	for off := 0; off < len(c.Samples); off += size {
		end := off + size
		if end <= len(c.Samples) {
			frames = append(frames, c.Samples[off:end])
			continue
		}
		last := make([]float64, size)
		copy(last, c.Samples[off:])
		frames = append(frames, last)
	}
	return frames
}

// ReadWAV decodes a 16, 24 or 32-bit PCM WAV stream.
func ReadWAV(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode PCM data: %w", err)
	}

	bitDepth := int(d.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidWAV, channels)
	}

	scale := 1 / float64(int64(1)<<(bitDepth-1))
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range samples {
		var sum int
		for c := range channels {
			sum += buf.Data[i*channels+c]
		}
		samples[i] = float64(sum) / float64(channels) * scale
	}

	return &Clip{
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
		Samples:    samples,
	}, nil
}

// ReadWAVFile opens and decodes the WAV file at path.
func ReadWAVFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	clip, err := ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return clip, nil
}

// WriteWAV encodes mono samples as PCM at the given bit depth. Samples
// outside [-1, 1] are clipped.
func WriteWAV(w io.WriteSeeker, samples []float64, sampleRate, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	full := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		data[i] = int(math.Round(s * full))
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write PCM data: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile writes samples to a new WAV file at path.
func WriteWAVFile(path string, samples []float64, sampleRate, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, samples, sampleRate, bitDepth); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
