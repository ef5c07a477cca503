package session

import (
	"time"

	"github.com/backkem/teslable/pkg/crypto"
	"github.com/backkem/teslable/pkg/wire/universal"
)

// EpochSize is the size of a session epoch in bytes.
const EpochSize = 16

// Keys are the symmetric keys derived for an authenticated session.
type Keys struct {
	Encryption     [crypto.SymmetricKeySize]byte
	Authentication [crypto.SymmetricKeySize]byte
}

// Session is the state of one domain. Values returned by Manager.Session are
// copies and may be inspected freely.
type Session struct {
	Domain  universal.Domain
	State   State
	Counter uint32

	// Epoch is nil until a handshake succeeds.
	Epoch []byte
	// Keys is nil until a handshake succeeds.
	Keys *Keys

	PeerPublicKey []byte
	PeerKeyID     []byte

	// ClockTime is the vehicle clock reported at handshake, in seconds.
	ClockTime uint32

	LastUpdate time.Time

	// challenge is the challenge of the outstanding session-info request.
	challenge []byte
}

// IsAuthenticated reports whether requests can be wrapped for this session.
func (s *Session) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.Keys != nil
}

// reset returns the session to Unauthenticated. The peer public key and key
// ID are kept for diagnostics; they are replaced on the next handshake.
func (s *Session) reset() {
	s.State = StateUnauthenticated
	s.Keys = nil
	s.Epoch = nil
	s.Counter = 0
	s.challenge = nil
}

func (s *Session) clone() Session {
	c := *s
	c.Epoch = cloneBytes(s.Epoch)
	c.PeerPublicKey = cloneBytes(s.PeerPublicKey)
	c.PeerKeyID = cloneBytes(s.PeerKeyID)
	if s.Keys != nil {
		k := *s.Keys
		c.Keys = &k
	}
	return c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
