package vehiclesim

import "errors"

// Simulator errors.
var (
	// ErrNoTransport is returned when Config has no transport.
	ErrNoTransport = errors.New("vehiclesim: transport is required")

	// ErrConnectFailed is returned when the transport does not connect.
	ErrConnectFailed = errors.New("vehiclesim: connect failed")
)

var errMalformed = errors.New("vehiclesim: malformed request")
