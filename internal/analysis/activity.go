// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"sync"

	applog "voicefft/internal/log"
	"voicefft/internal/transport"
)

var activityLog = applog.Named("activity")

// DefaultHangover is the number of quiet frames after which speech is
// considered finished.
const DefaultHangover = 8

// ActivityEvent is sent when the detector changes state.
type ActivityEvent struct {
	Type     string  `json:"type"`     // Always "vad_state"
	Speaking bool    `json:"speaking"` // State entered
	Level    float64 `json:"level"`    // RMS of the frame that caused the change, in [0, 1]
	Frame    uint64  `json:"frame"`    // Index of that frame
}

// ActivityDetector tracks whether the input contains speech from the RMS
// level of each frame. It goes active on the first frame above threshold and
// inactive after hangover consecutive frames below it.
type ActivityDetector struct {
	threshold float64
	hangover  int
	transport transport.Transport

	mu       sync.Mutex
	speaking bool
	quiet    int
	frames   uint64
	level    float64
}

// NewActivityDetector creates a detector. threshold is an RMS level in
// (0, 1]; t may be nil.
func NewActivityDetector(threshold float64, hangover int, t transport.Transport) (*ActivityDetector, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, errors.New("activity threshold must be in (0, 1]")
	}
	if hangover < 1 {
		hangover = DefaultHangover
	}
	activityLog.Debugf("initializing (threshold %.4f, hangover %d frames)", threshold, hangover)
	return &ActivityDetector{
		threshold: threshold,
		hangover:  hangover,
		transport: t,
	}, nil
}

// Process updates the state from one mono frame.
func (d *ActivityDetector) Process(buffer []int32) {
	level := calculateRMS(buffer)

	d.mu.Lock()
	d.frames++
	d.level = level
	changed := false
	if level >= d.threshold {
		d.quiet = 0
		if !d.speaking {
			d.speaking, changed = true, true
		}
	} else if d.speaking {
		d.quiet++
		if d.quiet >= d.hangover {
			d.speaking, changed = false, true
		}
	}
	event := ActivityEvent{Type: "vad_state", Speaking: d.speaking, Level: level, Frame: d.frames - 1}
	d.mu.Unlock()

	if !changed {
		return
	}
	activityLog.Debugf("speaking=%v at frame %d (level %.4f)", event.Speaking, event.Frame, level)
	if d.transport != nil {
		if err := d.transport.Send(event); err != nil {
			activityLog.Warnf("error sending activity event: %v", err)
		}
	}
}

// Speaking reports the current state.
func (d *ActivityDetector) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

// Level returns the RMS level of the last frame.
func (d *ActivityDetector) Level() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

// calculateRMS calculates the Root Mean Square level of the buffer,
// normalized to [0, 1].
func calculateRMS(buffer []int32) float64 {
	if len(buffer) == 0 {
		return 0.0
	}
	var sum float64
	for _, s := range buffer {
		v := float64(s) / -math.MinInt32
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buffer)))
}

// Chain hands every frame to each processor in order.
type Chain []AudioProcessor

func (c Chain) Process(buffer []int32) {
	for _, p := range c {
		p.Process(buffer)
	}
}

// Close closes the processors that support it and reports the first error.
func (c Chain) Close() error {
	var first error
	for _, p := range c {
		if cp, ok := p.(ClosableProcessor); ok {
			if err := cp.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

var _ ClosableProcessor = Chain(nil)
