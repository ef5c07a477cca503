package universal

import "errors"

// Envelope errors.
var (
	// ErrMissingDestination is returned when a decoded envelope carries no
	// from_destination to route it by.
	ErrMissingDestination = errors.New("universal: envelope has no origin destination")
)
