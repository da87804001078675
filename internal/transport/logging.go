// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"sync/atomic"

	applog "voicefft/internal/log"
)

var transportLog = applog.Named("transport")

// LoggingTransport implements the Transport interface by logging data at
// debug level. It is the default when no network transport is configured.
type LoggingTransport struct {
	sent atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	transportLog.Infof("using logging transport")
	return &LoggingTransport{}
}

// Send logs the JSON form of data. Logging never fails, so neither does Send.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.sent.Add(1)
	if applog.GetLevel() > applog.LevelDebug {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		transportLog.Debugf("#%d (%T): %+v (marshal error: %v)", n, data, data, err)
		return nil
	}
	transportLog.Debugf("#%d (%T): %s", n, data, payload)
	return nil
}

// Sent returns the number of values passed to Send.
func (lt *LoggingTransport) Sent() uint64 { return lt.sent.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	transportLog.Debugf("logging transport closed after %d messages", lt.sent.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
