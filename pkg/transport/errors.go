package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed link.
	ErrClosed = errors.New("transport: closed")

	// ErrNotConnected is returned by Write before Connect succeeds.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrChunkTooLarge is returned when a single write exceeds the MTU.
	ErrChunkTooLarge = errors.New("transport: chunk exceeds MTU")
)
