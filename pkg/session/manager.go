package session

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/backkem/teslable/pkg/crypto"
	"github.com/backkem/teslable/pkg/wire/universal"
)

// ChallengeSize is the size of the random challenge in a session-info request.
const ChallengeSize = 4

// Config configures a Manager.
type Config struct {
	// PrivateKey is an optional persisted 32-byte P-256 scalar.
	// A new key pair is generated when empty.
	PrivateKey []byte

	// ExpiresIn sets expires_at on wrapped requests relative to the vehicle
	// clock reported at handshake. Zero leaves expires_at unset.
	ExpiresIn time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Manager owns the local key pair and the sessions of every domain of one
// vehicle connection. It is safe for concurrent use.
type Manager struct {
	keyPair *crypto.KeyPair
	keyID   [crypto.KeyIDSize]byte

	sessions  map[universal.Domain]*Session
	expiresIn time.Duration
	now       func() time.Time

	log logging.LeveledLogger
	mu  sync.RWMutex
}

// NewManager creates a session manager with sessions for the vehicle
// security and infotainment domains.
func NewManager(config Config) (*Manager, error) {
	var (
		kp  *crypto.KeyPair
		err error
	)
	if len(config.PrivateKey) > 0 {
		kp, err = crypto.KeyPairFromPrivateKey(config.PrivateKey)
	} else {
		kp, err = crypto.GenerateKeyPair()
	}
	if err != nil {
		return nil, fmt.Errorf("session: load key pair: %w", err)
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		keyPair:   kp,
		keyID:     kp.KeyID(),
		sessions:  make(map[universal.Domain]*Session),
		expiresIn: config.ExpiresIn,
		now:       now,
	}
	for _, d := range []universal.Domain{universal.DomainVehicleSecurity, universal.DomainInfotainment} {
		m.sessions[d] = &Session{Domain: d, LastUpdate: now()}
	}

	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("session")
	}
	return m, nil
}

// PublicKey returns the local uncompressed public key.
func (m *Manager) PublicKey() []byte {
	return m.keyPair.PublicKey()
}

// PrivateKey returns the local private scalar for persistence.
func (m *Manager) PrivateKey() []byte {
	return m.keyPair.PrivateKey()
}

// KeyID returns the 4-byte identifier of the local public key.
func (m *Manager) KeyID() [crypto.KeyIDSize]byte {
	return m.keyID
}

// session returns the session for domain, creating it on first use.
// Caller must hold m.mu for writing.
func (m *Manager) session(domain universal.Domain) *Session {
	s, ok := m.sessions[domain]
	if !ok {
		s = &Session{Domain: domain, LastUpdate: m.now()}
		m.sessions[domain] = s
	}
	return s
}

// Session returns a copy of the session state for domain.
func (m *Manager) Session(domain universal.Domain) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session(domain).clone()
}

// Domains returns every domain with a session, in ascending order.
func (m *Manager) Domains() []universal.Domain {
	m.mu.RLock()
	defer m.mu.RUnlock()

	domains := make([]universal.Domain, 0, len(m.sessions))
	for d := range m.sessions {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
	return domains
}

// IsAuthenticated reports whether domain has an authenticated session.
func (m *Manager) IsAuthenticated(domain universal.Domain) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[domain]
	return ok && s.IsAuthenticated()
}

// Invalidate resets the session for domain to Unauthenticated, dropping its
// keys, epoch and counter. It is idempotent.
func (m *Manager) Invalidate(domain universal.Domain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidate(m.session(domain))
}

func (m *Manager) invalidate(s *Session) {
	if m.log != nil {
		m.log.Infof("invalidating session for domain %s", s.Domain)
	}
	s.reset()
}

// PrepareHandshakeRequest moves the domain to Handshaking and returns the
// session-info request to send. The request carries the local public key and
// a fresh random challenge.
func (m *Manager) PrepareHandshakeRequest(domain universal.Domain) (*universal.RoutableMessage, error) {
	challenge, err := crypto.RandomBytes(ChallengeSize)
	if err != nil {
		return nil, fmt.Errorf("session: generate challenge: %w", err)
	}
	id := uuid.New()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(domain)
	s.State = StateHandshaking
	s.challenge = challenge

	if m.log != nil {
		m.log.Debugf("preparing session info request for domain %s", domain)
	}

	return &universal.RoutableMessage{
		ToDestination:   &universal.Destination{Domain: domain},
		FromDestination: &universal.Destination{Domain: universal.DomainBroadcast},
		SessionInfoRequest: &universal.SessionInfoRequest{
			PublicKey: m.keyPair.PublicKey(),
			Challenge: challenge,
		},
		UUID: id[:],
	}, nil
}

// IngestHandshakeResponse completes a handshake from the vehicle's session
// info. On any failure the session is invalidated and an error is returned;
// the session is never left authenticated with unusable parameters.
//
// The session-info tag is not checked. Envelopes read from the vehicle go
// through IngestSignedHandshakeResponse.
func (m *Manager) IngestHandshakeResponse(domain universal.Domain, info *universal.SessionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(domain)
	if err := m.ingest(s, info); err != nil {
		return err
	}
	m.authenticated(s)
	return nil
}

// IngestSignedHandshakeResponse decodes encoded session info, completes the
// handshake and verifies tag against the derived authentication key. The tag
// binds the session info to the challenge of the last request prepared for
// the domain; a missing or wrong tag invalidates the session.
func (m *Manager) IngestSignedHandshakeResponse(domain universal.Domain, encoded, tag []byte) (*universal.SessionInfo, error) {
	info := &universal.SessionInfo{}
	if err := info.Unmarshal(encoded); err != nil {
		return nil, fmt.Errorf("session: decode session info: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(domain)
	if err := m.ingest(s, info); err != nil {
		return info, err
	}
	if !VerifySessionInfoTag(s.Keys, s.challenge, encoded, tag) {
		if m.log != nil {
			m.log.Warnf("session info tag mismatch for domain %s", domain)
		}
		m.invalidate(s)
		return info, ErrSessionInfoTag
	}
	m.authenticated(s)
	return info, nil
}

// ingest applies session info to s. Caller must hold m.mu for writing.
func (m *Manager) ingest(s *Session, info *universal.SessionInfo) error {
	if m.log != nil {
		m.log.Debugf("session info for domain %s: counter=%d status=%s", s.Domain, info.Counter, info.Status)
	}

	switch {
	case info.Status == universal.SessionInfoStatusKeyNotOnWhitelist:
		m.invalidate(s)
		return ErrKeyNotOnWhitelist
	case info.Status != universal.SessionInfoStatusOK:
		m.invalidate(s)
		return fmt.Errorf("%w: status %s", ErrHandshakeRejected, info.Status)
	case len(info.Epoch) != EpochSize:
		m.invalidate(s)
		return ErrMissingEpoch
	}

	secret, err := m.keyPair.ECDH(info.PublicKey)
	if err != nil {
		m.invalidate(s)
		return fmt.Errorf("%w: %w", ErrHandshakeRejected, err)
	}

	peerKeyID := crypto.DeriveKeyID(info.PublicKey)
	keys, err := DeriveKeys(secret, info.Epoch, m.keyID, peerKeyID)
	if err != nil {
		m.invalidate(s)
		return fmt.Errorf("session: derive keys: %w", err)
	}

	s.Counter = info.Counter
	s.Epoch = cloneBytes(info.Epoch)
	s.PeerPublicKey = cloneBytes(info.PublicKey)
	s.PeerKeyID = peerKeyID[:]
	s.ClockTime = info.ClockTime
	s.Keys = keys
	s.State = StateAuthenticated
	s.LastUpdate = m.now()
	return nil
}

// authenticated consumes the handshake challenge of s.
func (m *Manager) authenticated(s *Session) {
	s.challenge = nil
	if m.log != nil {
		m.log.Infof("session authenticated for domain %s with counter %d", s.Domain, s.Counter)
	}
}

// Wrap encrypts payload for domain and returns the authenticated envelope.
// The session counter is incremented for every wrapped request.
func (m *Manager) Wrap(domain universal.Domain, payload []byte) (*universal.RoutableMessage, error) {
	nonce, err := crypto.RandomBytes(crypto.AESGCMNonceSize)
	if err != nil {
		return nil, fmt.Errorf("session: generate nonce: %w", err)
	}
	id := uuid.New()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(domain)
	if !s.IsAuthenticated() {
		return nil, fmt.Errorf("%w: domain %s", ErrNotAuthenticated, domain)
	}
	if s.Counter == math.MaxUint32 {
		m.invalidate(s)
		return nil, fmt.Errorf("%w: domain %s counter exhausted", ErrNotAuthenticated, domain)
	}

	counter := s.Counter + 1
	aad := RequestAAD(domain, counter, s.Epoch)
	sealed, err := crypto.AESGCMEncrypt(s.Keys.Encryption[:], nonce, payload, aad)
	if err != nil {
		return nil, fmt.Errorf("session: encrypt: %w", err)
	}
	s.Counter = counter
	ciphertext, tag := splitTag(sealed)

	if m.log != nil {
		m.log.Debugf("wrapping message for domain %s, counter %d", domain, counter)
	}

	return &universal.RoutableMessage{
		ToDestination:          &universal.Destination{Domain: domain},
		FromDestination:        &universal.Destination{Domain: universal.DomainBroadcast},
		ProtobufMessageAsBytes: ciphertext,
		SignatureData: &universal.SignatureData{
			SignerIdentity: &universal.KeyIdentity{PublicKey: m.keyPair.PublicKey()},
			AESGCMPersonalized: &universal.AESGCMPersonalizedData{
				Epoch:     cloneBytes(s.Epoch),
				Nonce:     nonce,
				Counter:   counter,
				ExpiresAt: m.expiresAt(s),
				Tag:       tag,
			},
		},
		UUID:  id[:],
		Flags: universal.FlagUserCommand.Mask(),
	}, nil
}

// expiresAt returns the expiry of a request in vehicle clock seconds.
func (m *Manager) expiresAt(s *Session) uint32 {
	if m.expiresIn <= 0 {
		return 0
	}
	elapsed := m.now().Sub(s.LastUpdate)
	if elapsed < 0 {
		elapsed = 0
	}
	return s.ClockTime + uint32(elapsed/time.Second) + uint32(m.expiresIn/time.Second)
}

// Unwrap returns the plaintext payload of an envelope received from domain.
//
// An envelope with an ERROR status yields its raw payload together with a
// *StatusError; invalid token/counter and incorrect epoch faults also
// invalidate the session. Envelopes received while unauthenticated, or
// without response signature metadata, are returned unchanged. Encrypted
// responses are opened with empty associated data; a tag mismatch returns
// ErrAuthenticationFailed.
func (m *Manager) Unwrap(domain universal.Domain, msg *universal.RoutableMessage) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(domain)
	raw := msg.ProtobufMessageAsBytes

	if msg.HasErrorStatus() {
		fault := msg.SignedMessageStatus.SignedMessageFault
		serr := &StatusError{Domain: domain, Fault: fault}
		if m.log != nil {
			m.log.Warnf("received error status from domain %s: %s", domain, fault)
		}
		if fault.InvalidatesSession() {
			m.invalidate(s)
			serr.Invalidated = true
		}
		return raw, serr
	}

	if !s.IsAuthenticated() {
		return raw, nil
	}
	if msg.SignatureData == nil || msg.SignatureData.AESGCMResponse == nil {
		if m.log != nil {
			m.log.Debugf("message from domain %s has no response signature", domain)
		}
		return raw, nil
	}

	resp := msg.SignatureData.AESGCMResponse
	if m.log != nil {
		m.log.Tracef("response counter %d for domain %s (local %d)", resp.Counter, domain, s.Counter)
	}
	if len(resp.Nonce) != crypto.AESGCMNonceSize || len(resp.Tag) != crypto.AESGCMTagSize {
		return nil, fmt.Errorf("%w: domain %s: malformed response signature", ErrAuthenticationFailed, domain)
	}

	plaintext, err := crypto.AESGCMDecrypt(s.Keys.Encryption[:], resp.Nonce, joinTag(raw, resp.Tag), nil)
	if err != nil {
		if m.log != nil {
			m.log.Warnf("failed to decrypt message from domain %s: %v", domain, err)
		}
		return nil, fmt.Errorf("session: domain %s: %w", domain, err)
	}
	return plaintext, nil
}
