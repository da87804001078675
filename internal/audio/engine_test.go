// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"strconv"
	"sync"
	"testing"

	"voicefft/internal/config"
)

const (
	testSampleRate = 16000
	testFrameSize  = 512
)

var (
	quietBuffer = scaledBuffer(testFrameSize, 0.001)
	testBuffer  = scaledBuffer(testFrameSize, 0.3)
	loudBuffer  = scaledBuffer(testFrameSize, 0.95)

	lowThreshold  = int32(math.MaxInt32 / 100)
	highThreshold = int32(math.MaxInt32 / 100 * 99)
)

// scaledBuffer returns a sawtooth alternating in sign with peak amplitude
// amp of full scale.
func scaledBuffer(n int, amp float64) []int32 {
	buf := make([]int32, n)
	for i := range buf {
		v := amp * float64(i%32+1) / 32 * math.MaxInt32
		if i%2 == 1 {
			v = -v
		}
		buf[i] = int32(v)
	}
	return buf
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func absFloat(f float64) float64 {
	return math.Abs(f)
}

// recordingProcessor keeps a copy of every frame it is given.
type recordingProcessor struct {
	mu     sync.Mutex
	frames [][]int32
	closed bool
}

func (p *recordingProcessor) Process(frame []int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, append([]int32(nil), frame...))
}

func (p *recordingProcessor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func testConfig(channels int) *config.Config {
	cfg := config.Default()
	cfg.Analysis.SampleRate = testSampleRate
	cfg.Audio.InputChannels = channels
	cfg.Audio.FramesPerBuffer = testFrameSize
	return cfg
}

func newTestEngine() *Engine {
	cfg := testConfig(2)
	cfg.Recording.BitDepth = 16
	return newEngine(cfg, &recordingProcessor{})
}

func TestNewEngineBuffers(t *testing.T) {
	cfg := testConfig(2)
	cfg.Audio.GateThreshold = 0.25
	e := newEngine(cfg, nil)

	if len(e.inputBuffer) != testFrameSize*2 {
		t.Errorf("inputBuffer length = %d, want %d", len(e.inputBuffer), testFrameSize*2)
	}
	if len(e.monoBuffer) != testFrameSize {
		t.Errorf("monoBuffer length = %d, want %d", len(e.monoBuffer), testFrameSize)
	}
	if !e.gateEnabled || absFloat(e.GetGateThreshold()-0.25) > 1e-6 {
		t.Errorf("gate = %v/%f, want enabled at 0.25", e.gateEnabled, e.GetGateThreshold())
	}

	if e := newEngine(testConfig(1), nil); e.gateEnabled {
		t.Error("a zero threshold should leave the gate disabled")
	}
}

func TestProcessBufferMono(t *testing.T) {
	p := &recordingProcessor{}
	e := newEngine(testConfig(1), p)

	e.processBuffer(testBuffer)

	if len(p.frames) != 1 {
		t.Fatalf("processor received %d frames, want 1", len(p.frames))
	}
	for i, s := range p.frames[0] {
		if s != testBuffer[i] {
			t.Fatalf("frame[%d] = %d, want %d", i, s, testBuffer[i])
		}
	}
	if e.Frames() != 1 || e.Gated() != 0 {
		t.Errorf("Frames/Gated = %d/%d, want 1/0", e.Frames(), e.Gated())
	}
}

func TestProcessBufferDownmix(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		frame    []int32 // one interleaved frame
		want     int32
	}{
		{"stereo average", 2, []int32{1000, 3000}, 2000},
		{"stereo opposite phase", 2, []int32{math.MaxInt32, -math.MaxInt32}, 0},
		{"stereo no overflow", 2, []int32{math.MaxInt32, math.MaxInt32}, math.MaxInt32},
		{"four channels", 4, []int32{4, 8, 12, 16}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingProcessor{}
			e := newEngine(testConfig(tt.channels), p)

			buffer := make([]int32, testFrameSize*tt.channels)
			for i := 0; i < len(buffer); i += tt.channels {
				copy(buffer[i:], tt.frame)
			}
			e.processBuffer(buffer)

			if len(p.frames) != 1 || len(p.frames[0]) != testFrameSize {
				t.Fatalf("processor received %d frames", len(p.frames))
			}
			for i, s := range p.frames[0] {
				if s != tt.want {
					t.Fatalf("mono[%d] = %d, want %d", i, s, tt.want)
				}
			}
		})
	}
}

func TestProcessBufferShortInputPadsWithSilence(t *testing.T) {
	p := &recordingProcessor{}
	e := newEngine(testConfig(2), p)

	e.processBuffer([]int32{10, 20, 30, 40})

	mono := p.frames[0]
	if mono[0] != 15 || mono[1] != 35 {
		t.Errorf("mono[:2] = %v, want [15 35]", mono[:2])
	}
	for i := 2; i < len(mono); i++ {
		if mono[i] != 0 {
			t.Fatalf("mono[%d] = %d, want 0", i, mono[i])
		}
	}
}

func TestProcessBufferGate(t *testing.T) {
	p := &recordingProcessor{}
	e := newEngine(testConfig(1), p)
	e.EnableGate()
	e.SetGateThreshold(0.1)

	e.processBuffer(quietBuffer)
	e.processBuffer(loudBuffer)
	e.processBuffer(quietBuffer)

	if len(p.frames) != 1 {
		t.Errorf("processor received %d frames, want 1", len(p.frames))
	}
	if e.Frames() != 1 || e.Gated() != 2 {
		t.Errorf("Frames/Gated = %d/%d, want 1/2", e.Frames(), e.Gated())
	}
}

func TestProcessBufferNilProcessor(t *testing.T) {
	e := newEngine(testConfig(1), nil)
	e.processBuffer(loudBuffer)
	if e.Frames() != 0 {
		t.Errorf("Frames() = %d, want 0", e.Frames())
	}
}

func TestEngineCloseClosesProcessor(t *testing.T) {
	p := &recordingProcessor{}
	e := newEngine(testConfig(1), p)

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !p.closed {
		t.Error("processor was not closed")
	}
}

func TestProcessBufferNoAllocsHotPath(t *testing.T) {
	e := newEngine(testConfig(2), &discardProcessor{})
	e.EnableGate()
	e.gateThreshold = lowThreshold
	buffer := scaledBuffer(testFrameSize*2, 0.5)

	allocs := testing.AllocsPerRun(100, func() {
		e.processBuffer(buffer)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in processBuffer, got %.1f", allocs)
	}
}

type discardProcessor struct{}

func (discardProcessor) Process([]int32) {}

func BenchmarkProcessBufferHotPath(b *testing.B) {
	e := newEngine(testConfig(2), discardProcessor{})
	e.EnableGate()
	e.gateThreshold = lowThreshold
	buffer := scaledBuffer(testFrameSize*2, 0.5)

	b.ReportAllocs()
	for b.Loop() {
		e.processBuffer(buffer)
	}
}
