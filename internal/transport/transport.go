// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for sending analysis results or events.
// Implementations must be safe for concurrent use and must not block the
// caller for long, since Send is reached from the audio path.
type Transport interface {
	Send(data any) error
	Close() error
}

// Multi fans a value out to several transports. Send reports the first error
// but still delivers to every transport.
type Multi []Transport

// Send delivers data to each transport in order.
func (m Multi) Send(data any) error {
	var first error
	for _, t := range m {
		if err := t.Send(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes each transport and reports the first error.
func (m Multi) Close() error {
	var first error
	for _, t := range m {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Transport = Multi(nil)
