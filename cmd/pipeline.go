// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"voicefft/internal/analysis"
	"voicefft/internal/config"
	applog "voicefft/internal/log"
	"voicefft/internal/transport"
	"voicefft/internal/transport/udp"
)

var cliLog = applog.Named("cli")

// pipeline is a frame analyzer with the transports the configuration asks
// for attached.
type pipeline struct {
	analyzer   *analysis.FrameAnalyzer
	detector   *analysis.ActivityDetector // nil when activity detection is off
	processor  analysis.AudioProcessor    // What the capture engine feeds
	transports transport.Multi
	websocket  *transport.WebSocketTransport
	sender     *udp.UDPSender
	publisher  *udp.UDPPublisher
}

// newPipeline builds the analyzer for audio at sampleRate. Per-frame results
// go to the WebSocket clients and, at debug level, to the log. UDP packets
// are sent on their own interval once Start is called.
func newPipeline(cfg *config.Config, sampleRate int) (_ *pipeline, err error) {
	p := &pipeline{}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	if applog.GetLevel() == applog.LevelDebug {
		p.transports = append(p.transports, transport.NewLoggingTransport())
	}
	if cfg.WebSocketEnabled() {
		p.websocket, err = transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err != nil {
			return nil, err
		}
		p.transports = append(p.transports, p.websocket)
	}

	var t transport.Transport
	if len(p.transports) > 0 {
		t = p.transports
	}
	p.analyzer, err = analysis.NewFrameAnalyzer(cfg.Analysis.FFTSize, sampleRate, cfg.Analysis.NumBands, t)
	if err != nil {
		return nil, err
	}
	p.processor = p.analyzer
	if cfg.Analysis.ActivityThreshold > 0 {
		p.detector, err = analysis.NewActivityDetector(cfg.Analysis.ActivityThreshold, cfg.Analysis.ActivityHangover, t)
		if err != nil {
			return nil, err
		}
		p.processor = analysis.Chain{p.analyzer, p.detector}
	}

	if cfg.Transport.UDPEnabled {
		p.sender, err = udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		p.publisher, err = udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, p.sender, p.analyzer)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Start begins UDP publishing when configured.
func (p *pipeline) Start() {
	if p.publisher != nil {
		p.publisher.Start()
	}
}

// Describe summarizes the outputs for status lines.
func (p *pipeline) Describe() string {
	s := fmt.Sprintf("%d-point frames @ %d Hz (%.2f Hz/bin)", p.analyzer.FFTSize(), p.analyzer.SampleRate(), p.analyzer.BinSize())
	if p.websocket != nil {
		s += fmt.Sprintf(" • ws://%s%s", p.websocket.Addr(), transport.VoicePath)
	}
	if p.publisher != nil {
		s += fmt.Sprintf(" • udp stream %s", p.publisher.StreamID())
	}
	return s
}

// Close stops publishing and releases the analyzer and transports.
func (p *pipeline) Close() error {
	var errList []error
	if p.publisher != nil {
		errList = append(errList, p.publisher.Close())
	}
	if p.sender != nil {
		errList = append(errList, p.sender.Close())
	}
	if p.analyzer != nil {
		errList = append(errList, p.analyzer.Close())
	}
	errList = append(errList, p.transports.Close())
	return errors.Join(errList...)
}
