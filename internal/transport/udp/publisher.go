// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"voicefft/internal/analysis"
	"voicefft/internal/voice"

	"github.com/google/uuid"
)

// DefaultInterval is used when the configured interval is not positive (~60Hz).
const DefaultInterval = 16 * time.Millisecond

// UDPPublisher periodically fetches the latest voice features from a
// provider, packs them (see packet.go) and sends them with a UDPSender. It
// runs in its own goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender
	provider analysis.VoiceResultProvider
	interval time.Duration
	streamID uuid.UUID

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	// Touched only by the publisher goroutine, or by publish in tests.
	sequenceNum  uint32
	latest       voice.VoiceVariables
	bandScratch  []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher. Every publisher gets a fresh stream id
// so receivers can tell restarts apart.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, provider analysis.VoiceResultProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: result provider cannot be nil")
	}
	if interval <= 0 {
		udpLog.Warnf("invalid publish interval %s, defaulting to %s", interval, DefaultInterval)
		interval = DefaultInterval
	}

	numBands := provider.NumBands()
	p := &UDPPublisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		streamID:     uuid.New(),
		latest:       voice.Zero(numBands),
		bandScratch:  make([]float32, 0, numBands),
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize(numBands))),
	}
	udpLog.Infof("publisher %s initialized (interval %s, bands %d, packet %d bytes)",
		p.streamID, interval, numBands, PacketSize(numBands))
	return p, nil
}

// StreamID returns the id carried in every packet.
func (p *UDPPublisher) StreamID() uuid.UUID { return p.streamID }

// Start launches the publisher goroutine. Calling Start on a running
// publisher is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		udpLog.Warnf("publisher already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		udpLog.Debugf("publisher goroutine started")
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it. It is
// safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	udpLog.Infof("publisher %s stopped after %d packets", p.streamID, p.sequenceNum)
	return nil
}

// publish sends the provider's latest result as one packet.
func (p *UDPPublisher) publish() {
	if err := p.provider.LatestInto(&p.latest); err != nil {
		udpLog.Errorf("error reading latest result: %v", err)
		return
	}

	p.sequenceNum++
	pkt := Packet{
		Sequence:  p.sequenceNum,
		Timestamp: time.Now().UnixNano(),
		StreamID:  p.streamID,
		Voice:     p.latest,
	}

	p.packetBuffer.Reset()
	scratch, err := EncodePacket(p.packetBuffer, &pkt, p.bandScratch)
	p.bandScratch = scratch
	if err != nil {
		udpLog.Errorf("error packing packet %d: %v", p.sequenceNum, err)
		return
	}

	// Send logs its own failures.
	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		udpLog.Debugf("sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Close stops the publisher. The sender is closed separately by its owner.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
