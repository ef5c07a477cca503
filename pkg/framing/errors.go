package framing

import "errors"

// Framing errors.
var (
	// ErrPayloadTooLarge is returned when a payload does not fit the
	// 16-bit length prefix.
	ErrPayloadTooLarge = errors.New("framing: payload exceeds 65535 bytes")
)
