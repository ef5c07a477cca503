// Package framing implements the length-prefixed framing used on the
// vehicle's notify and write characteristics.
//
// Each frame on the wire is:
//
//	+----------------+----------------------+
//	| length (BE16)  | payload (length B)   |
//	+----------------+----------------------+
//
// The transport delivers arbitrary chunks with no message boundaries, so
// inbound data is reassembled by a Decoder that may yield zero, one or
// several frames per chunk.
package framing

import (
	"encoding/binary"
	"fmt"
)

const (
	// LengthPrefixSize is the size of the big-endian length prefix.
	LengthPrefixSize = 2

	// MaxPayloadSize is the largest payload a frame can carry.
	MaxPayloadSize = 0xFFFF
)

// Encode prepends a 2-byte big-endian length to payload.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint16(buf[:LengthPrefixSize], uint16(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf, nil
}

// Decoder reassembles frames from an arbitrarily chunked byte stream.
//
// A Decoder is not safe for concurrent use; it is owned by the single
// goroutine that consumes transport notifications.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends incoming bytes and returns every frame payload that is now
// complete, in arrival order. Bytes beyond the last complete frame are kept
// for the next call. An empty or nil chunk returns no frames.
func (d *Decoder) Feed(incoming []byte) [][]byte {
	d.buf = append(d.buf, incoming...)

	var frames [][]byte
	for len(d.buf) >= LengthPrefixSize {
		length := int(binary.BigEndian.Uint16(d.buf[:LengthPrefixSize]))
		if len(d.buf) < LengthPrefixSize+length {
			break
		}
		frame := make([]byte, length)
		copy(frame, d.buf[LengthPrefixSize:LengthPrefixSize+length])
		frames = append(frames, frame)
		d.buf = d.buf[LengthPrefixSize+length:]
	}

	// Release the backing array once everything has been consumed.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any partially received frame.
func (d *Decoder) Reset() {
	d.buf = nil
}
