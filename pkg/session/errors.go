package session

import (
	"errors"
	"fmt"

	"github.com/backkem/teslable/pkg/crypto"
	"github.com/backkem/teslable/pkg/wire/universal"
)

// Session package errors.
var (
	// ErrNotAuthenticated is returned by Wrap before a handshake completes.
	// The caller must run a handshake for the domain first.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrHandshakeRejected is returned when the vehicle answers a
	// session-info request with a non-OK status or unusable parameters.
	// The session is invalidated and a fresh handshake may be attempted.
	ErrHandshakeRejected = errors.New("session: handshake rejected")

	// ErrMissingEpoch is returned when session info carries no 16-byte epoch.
	ErrMissingEpoch = fmt.Errorf("%w: missing or malformed epoch", ErrHandshakeRejected)

	// ErrKeyNotOnWhitelist is returned when the vehicle does not know the
	// local public key. Pairing is required before a handshake can succeed.
	ErrKeyNotOnWhitelist = fmt.Errorf("%w: key not on whitelist", ErrHandshakeRejected)

	// ErrSessionInfoTag is returned when session info is not authenticated
	// by a valid tag for the outstanding challenge.
	ErrSessionInfoTag = fmt.Errorf("%w: session info tag mismatch", ErrHandshakeRejected)

	// ErrMessageRejected is matched by every StatusError.
	ErrMessageRejected = errors.New("session: vehicle rejected message")

	// ErrAuthenticationFailed is returned when a response fails AEAD
	// verification. It is the same value as crypto.ErrAuthenticationFailed.
	ErrAuthenticationFailed = crypto.ErrAuthenticationFailed

	// ErrInvalidPeerKey is returned when the vehicle's session public key is
	// malformed. It is the same value as crypto.ErrInvalidPeerKey.
	ErrInvalidPeerKey = crypto.ErrInvalidPeerKey
)

// StatusError reports an explicit error status attached to an envelope.
type StatusError struct {
	Domain universal.Domain
	Fault  universal.MessageFault

	// Invalidated is true when the fault reset the domain's session.
	Invalidated bool
}

// Error implements error.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("session: %s rejected message: %s", e.Domain, e.Fault)
	if e.Invalidated {
		msg += " (session invalidated)"
	}
	return msg
}

// Unwrap allows errors.Is(err, ErrMessageRejected).
func (e *StatusError) Unwrap() error {
	return ErrMessageRejected
}

// Errors returned by Peer when opening requests.
var (
	// ErrIncorrectEpoch is returned for a request bound to another epoch.
	ErrIncorrectEpoch = errors.New("session: incorrect epoch")

	// ErrStaleCounter is returned for a request whose counter does not
	// advance past the last accepted one.
	ErrStaleCounter = errors.New("session: stale counter")

	// ErrMissingSignature is returned for a request without personalized
	// AES-GCM signature data.
	ErrMissingSignature = errors.New("session: missing signature data")
)
