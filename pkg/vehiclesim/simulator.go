// Package vehiclesim simulates the vehicle side of the protocol over a
// transport.Transport. It answers handshakes for whitelisted keys, opens
// authenticated requests, applies commands to an in-memory vehicle and
// confirms pairing requests.
package vehiclesim

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/teslable/pkg/crypto"
	"github.com/backkem/teslable/pkg/framing"
	"github.com/backkem/teslable/pkg/session"
	"github.com/backkem/teslable/pkg/transport"
	"github.com/backkem/teslable/pkg/wire/universal"
)

// PairingMode controls how whitelist requests are answered.
type PairingMode int

const (
	// PairingAccept answers WAIT, then OK once ConfirmDelay has passed.
	PairingAccept PairingMode = iota
	// PairingReject answers ERROR.
	PairingReject
	// PairingIgnore answers WAIT and never confirms.
	PairingIgnore
)

// String returns the mode name.
func (m PairingMode) String() string {
	switch m {
	case PairingAccept:
		return "Accept"
	case PairingReject:
		return "Reject"
	case PairingIgnore:
		return "Ignore"
	default:
		return "Unknown"
	}
}

// DefaultConfirmDelay is the time between WAIT and OK for an accepted
// pairing request.
const DefaultConfirmDelay = 50 * time.Millisecond

// Config configures a Simulator.
type Config struct {
	// Transport is the vehicle end of the link. Required.
	Transport transport.Transport

	// KeyPair is the vehicle key. A fresh key is generated when nil.
	KeyPair *crypto.KeyPair

	// Whitelist holds the public keys allowed to open sessions.
	Whitelist [][]byte

	// Pairing selects how whitelist requests are answered.
	Pairing PairingMode

	// ConfirmDelay defaults to DefaultConfirmDelay.
	ConfirmDelay time.Duration

	// MTU of outbound chunks. Defaults to transport.DefaultMTU.
	MTU int

	// Initial vehicle state. Defaults to DefaultVehicleState.
	Initial *VehicleState

	LoggerFactory logging.LoggerFactory
}

type peerKey struct {
	domain universal.Domain
	keyID  [crypto.KeyIDSize]byte
}

// Simulator is a simulated vehicle.
type Simulator struct {
	transport    transport.Transport
	keyPair      *crypto.KeyPair
	pairingMode  PairingMode
	confirmDelay time.Duration
	log          logging.LeveledLogger

	writer  *transport.ChunkWriter
	writeMu sync.Mutex
	decoder *framing.Decoder

	mu        sync.Mutex
	state     VehicleState
	whitelist map[string][]byte
	epochs    map[universal.Domain][]byte
	peers     map[peerKey]*session.Peer
	clock     time.Time
	timers    []*time.Timer
}

// New creates a simulator.
func New(config Config) (*Simulator, error) {
	if config.Transport == nil {
		return nil, ErrNoTransport
	}
	kp := config.KeyPair
	if kp == nil {
		var err error
		if kp, err = crypto.GenerateKeyPair(); err != nil {
			return nil, err
		}
	}
	delay := config.ConfirmDelay
	if delay <= 0 {
		delay = DefaultConfirmDelay
	}
	state := DefaultVehicleState()
	if config.Initial != nil {
		state = *config.Initial
	}

	s := &Simulator{
		transport:    config.Transport,
		keyPair:      kp,
		pairingMode:  config.Pairing,
		confirmDelay: delay,
		writer: transport.NewChunkWriter(config.Transport, transport.ChunkWriterConfig{
			MTU:      config.MTU,
			Interval: -1,
		}),
		decoder:   framing.NewDecoder(),
		state:     state,
		whitelist: make(map[string][]byte),
		epochs:    make(map[universal.Domain][]byte),
		peers:     make(map[peerKey]*session.Peer),
		clock:     time.Now(),
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("vehiclesim")
	}
	for _, pub := range config.Whitelist {
		s.whitelist[keyString(pub)] = append([]byte(nil), pub...)
	}
	if err := s.RotateEpochs(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start subscribes to the transport and accepts connections.
func (s *Simulator) Start(ctx context.Context) error {
	s.transport.RegisterNotificationCallback(s.onChunk)
	if !s.transport.Connect(ctx, "") {
		return ErrConnectFailed
	}
	return nil
}

// Stop cancels pending pairing confirmations and disconnects.
func (s *Simulator) Stop() {
	s.mu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.mu.Unlock()
	s.transport.Disconnect()
}

// PublicKey returns the vehicle's public key.
func (s *Simulator) PublicKey() []byte {
	return s.keyPair.PublicKey()
}

// State returns a copy of the vehicle state.
func (s *Simulator) State() VehicleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update modifies the vehicle state.
func (s *Simulator) Update(fn func(*VehicleState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Whitelist adds a public key to the whitelist.
func (s *Simulator) Whitelist(publicKey []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[keyString(publicKey)] = append([]byte(nil), publicKey...)
}

// IsWhitelisted reports whether publicKey is on the whitelist.
func (s *Simulator) IsWhitelisted(publicKey []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.whitelist[keyString(publicKey)]
	return ok
}

// RotateEpochs starts a new epoch in every domain, as a vehicle reboot
// would. Existing sessions are rejected with an incorrect-epoch fault.
func (s *Simulator) RotateEpochs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range []universal.Domain{universal.DomainVehicleSecurity, universal.DomainInfotainment} {
		epoch, err := crypto.RandomBytes(session.EpochSize)
		if err != nil {
			return err
		}
		s.epochs[d] = epoch
	}
	s.clock = time.Now()
	return nil
}

func (s *Simulator) onChunk(chunk []byte) {
	// The transport delivers chunks from a single goroutine.
	for _, frame := range s.decoder.Feed(chunk) {
		reply := s.handleFrame(frame)
		if reply != nil {
			s.send(reply)
		}
	}
}

func (s *Simulator) send(msg *universal.RoutableMessage) {
	frame, err := framing.Encode(msg.Marshal())
	if err != nil {
		if s.log != nil {
			s.log.Errorf("encode reply: %v", err)
		}
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.writer.WriteFrame(context.Background(), frame); err != nil && s.log != nil {
		s.log.Warnf("write reply: %v", err)
	}
}

// after schedules fn. s.mu must be held.
func (s *Simulator) after(d time.Duration, fn func()) {
	s.timers = append(s.timers, time.AfterFunc(d, fn))
}

func keyString(publicKey []byte) string {
	return hex.EncodeToString(publicKey)
}
