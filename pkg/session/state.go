// Package session implements the per-domain authenticated session layer of
// the vehicle protocol.
//
// A Manager owns one local P-256 key pair and one Session per vehicle
// domain. Each session moves through a small state machine:
//
//	Unauthenticated --PrepareHandshakeRequest--> Handshaking
//	Handshaking --IngestHandshakeResponse(OK)--> Authenticated
//	any state --Invalidate / rejected handshake / invalidating fault--> Unauthenticated
//
// Authenticated sessions wrap outgoing payloads with AES-128-GCM under a key
// derived from an ECDH shared secret, binding each request to its domain,
// counter and epoch through the associated data. Responses are opened with
// the same key and empty associated data.
package session

import "fmt"

// State is the authentication state of a domain session.
type State int

const (
	// StateUnauthenticated means no usable keys exist.
	StateUnauthenticated State = iota

	// StateHandshaking means a session-info request is outstanding.
	StateHandshaking

	// StateAuthenticated means keys are derived and requests can be wrapped.
	StateAuthenticated
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateHandshaking:
		return "Handshaking"
	case StateAuthenticated:
		return "Authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsValid returns true if the state is a defined value.
func (s State) IsValid() bool {
	return s >= StateUnauthenticated && s <= StateAuthenticated
}
