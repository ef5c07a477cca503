package protocol

import (
	"errors"
	"fmt"

	"github.com/backkem/teslable/pkg/wire/universal"
)

// Protocol errors.
var (
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("protocol: parse failed")

	// ErrInvalidArgument is returned by builders for out-of-range values.
	ErrInvalidArgument = errors.New("protocol: invalid argument")

	// ErrNoSessionManager is returned when New is called without a manager.
	ErrNoSessionManager = errors.New("protocol: session manager is required")
)

// Layer identifies where in the inbound pipeline a frame was rejected.
type Layer int

const (
	// LayerEnvelope means the RoutableMessage itself could not be decoded.
	LayerEnvelope Layer = iota
	// LayerSession means the session layer rejected the envelope.
	LayerSession
	// LayerDomain means the decrypted payload is not a valid domain message.
	LayerDomain
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerEnvelope:
		return "envelope"
	case LayerSession:
		return "session"
	case LayerDomain:
		return "domain"
	default:
		return fmt.Sprintf("Layer(%d)", int(l))
	}
}

// ParseError reports a frame that could not be turned into a Result.
type ParseError struct {
	Layer Layer

	// Domain is the envelope origin. It is zero for envelope-layer errors.
	Domain universal.Domain

	// RequestUUID echoes the envelope's request_uuid when it was decoded.
	RequestUUID []byte

	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	if e.Layer == LayerEnvelope {
		return fmt.Sprintf("protocol: %s: %v", e.Layer, e.Err)
	}
	return fmt.Sprintf("protocol: %s (%s): %v", e.Layer, e.Domain, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrParse).
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
