// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"voicefft/internal/voice"

	"github.com/google/uuid"
)

/*
UDP Packet Structure (BigEndian)

+------------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description              |
|-------------------|----------------|--------------|--------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing |
| Timestamp         | int64          | 8            | Nanoseconds since epoch  |
| Stream ID         | [16]byte       | 16           | UUID of the publisher    |
| Total Energy      | float32        | 4            | Before normalization     |
| Band Count        | uint16         | 2            | Number of bands (N)      |
| Bands             | []float32      | N * 4        | Normalized band energies |
| Formants          | [3]float32     | 12           | F1..F3 in Hz, 0 = absent |
+------------------------------------------------------------------------------+
*/

// headerSize covers every fixed field before the bands.
const headerSize = 4 + 8 + 16 + 4 + 2

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

// Packet is the decoded form of one datagram.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	StreamID  uuid.UUID
	Voice     voice.VoiceVariables
}

// PacketSize returns the encoded size of a packet carrying numBands bands.
func PacketSize(numBands int) int {
	return headerSize + 4*numBands + 4*voice.NumFormants
}

// packetHeader is written with a single binary.Write call.
type packetHeader struct {
	Sequence    uint32
	Timestamp   int64
	StreamID    [16]byte
	TotalEnergy float32
	BandCount   uint16
}

// EncodePacket appends the wire form of p to buf. scratch is reused for the
// float32 conversion of the bands and may be nil.
func EncodePacket(buf *bytes.Buffer, p *Packet, scratch []float32) ([]float32, error) {
	if len(p.Voice.Bands) > 0xFFFF {
		return scratch, fmt.Errorf("udp: %d bands do not fit in a packet", len(p.Voice.Bands))
	}

	hdr := packetHeader{
		Sequence:    p.Sequence,
		Timestamp:   p.Timestamp,
		StreamID:    p.StreamID,
		TotalEnergy: float32(p.Voice.TotalEnergy),
		BandCount:   uint16(len(p.Voice.Bands)),
	}
	scratch = scratch[:0]
	for _, b := range p.Voice.Bands {
		scratch = append(scratch, float32(b))
	}
	var formants [voice.NumFormants]float32
	for i, f := range p.Voice.Formants {
		formants[i] = float32(f)
	}

	err := binary.Write(buf, binary.BigEndian, &hdr)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, scratch)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, &formants)
	}
	return scratch, err
}

// DecodePacket parses one datagram.
func DecodePacket(data []byte) (Packet, error) {
	var p Packet
	if len(data) < headerSize {
		return p, ErrShortPacket
	}
	r := bytes.NewReader(data)

	var hdr packetHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return p, fmt.Errorf("udp: reading header: %w", err)
	}
	if len(data) != PacketSize(int(hdr.BandCount)) {
		return p, fmt.Errorf("%w: %d bytes for %d bands", ErrShortPacket, len(data), hdr.BandCount)
	}

	bands := make([]float32, hdr.BandCount)
	if err := binary.Read(r, binary.BigEndian, bands); err != nil {
		return p, fmt.Errorf("udp: reading bands: %w", err)
	}
	var formants [voice.NumFormants]float32
	if err := binary.Read(r, binary.BigEndian, &formants); err != nil {
		return p, fmt.Errorf("udp: reading formants: %w", err)
	}

	p.Sequence = hdr.Sequence
	p.Timestamp = hdr.Timestamp
	p.StreamID = hdr.StreamID
	p.Voice.TotalEnergy = float64(hdr.TotalEnergy)
	p.Voice.Bands = make([]float64, len(bands))
	for i, b := range bands {
		p.Voice.Bands[i] = float64(b)
	}
	for i, f := range formants {
		p.Voice.Formants[i] = float64(f)
	}
	return p, nil
}
