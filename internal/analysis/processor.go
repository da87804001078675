// SPDX-License-Identifier: MIT
package analysis

import "voicefft/internal/voice"

// AudioProcessor is implemented by components that consume captured audio
// buffers. Process is called from the audio callback and must not block.
type AudioProcessor interface {
	Process(inputBuffer []int32)
}

// ClosableProcessor combines AudioProcessor with a Close method for resource cleanup.
type ClosableProcessor interface {
	AudioProcessor
	Close() error
}

// VoiceResultProvider exposes the most recent feature vector to publishers
// running outside the audio callback.
type VoiceResultProvider interface {
	// Latest returns a copy of the latest result.
	Latest() voice.VoiceVariables
	// LatestInto copies the latest result into dst, reusing dst.Bands.
	LatestInto(dst *voice.VoiceVariables) error
	NumBands() int
}
