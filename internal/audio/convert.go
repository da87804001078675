// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"math"
)

// PCM16ToFloat maps a 16-bit sample to [-1, 1).
func PCM16ToFloat(s int16) float64 {
	return float64(s) / 32768
}

// FloatToPCM16 clamps f to [-1, 1] and rounds it to the nearest 16-bit
// sample.
func FloatToPCM16(f float64) int16 {
	f = max(-1, min(1, f))
	return int16(math.Round(f * math.MaxInt16))
}

// DecodePCM16LE converts little-endian 16-bit PCM to floats. A trailing odd
// byte is ignored.
func DecodePCM16LE(data []byte) []float64 {
	out := make([]float64, len(data)/2)
	for i := range out {
		out[i] = PCM16ToFloat(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return out
}

// EncodePCM16LE converts floats to little-endian 16-bit PCM.
func EncodePCM16LE(samples []float64) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(FloatToPCM16(s)))
	}
	return out
}
