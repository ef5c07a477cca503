// Package keystore persists the client key pair. The key pair is created
// once, whitelisted on the vehicle during pairing and reused afterwards.
package keystore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/teslable/pkg/crypto"
)

// Store loads and saves a key pair.
type Store interface {
	// Load returns ErrNotFound when nothing has been saved.
	Load() (*crypto.KeyPair, error)
	Save(kp *crypto.KeyPair) error
}

// record is the persisted form of a key pair.
type record struct {
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}

func newRecord(kp *crypto.KeyPair) record {
	return record{
		PrivateKey: hex.EncodeToString(kp.PrivateKey()),
		PublicKey:  hex.EncodeToString(kp.PublicKey()),
	}
}

func (r record) keyPair() (*crypto.KeyPair, error) {
	priv, err := hex.DecodeString(r.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %w", ErrInvalidKeyPair, err)
	}
	kp, err := crypto.KeyPairFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyPair, err)
	}
	if r.PublicKey != "" && r.PublicKey != hex.EncodeToString(kp.PublicKey()) {
		return nil, fmt.Errorf("%w: public key does not match private key", ErrInvalidKeyPair)
	}
	return kp, nil
}

// LoadOrCreate loads the key pair from s, generating and saving a new one
// if none exists. created reports whether a key pair was generated.
func LoadOrCreate(s Store) (kp *crypto.KeyPair, created bool, err error) {
	kp, err = s.Load()
	if err == nil {
		return kp, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if kp, err = crypto.GenerateKeyPair(); err != nil {
		return nil, false, err
	}
	if err := s.Save(kp); err != nil {
		return nil, false, fmt.Errorf("keystore: save new key pair: %w", err)
	}
	return kp, true, nil
}

// MemoryStore keeps the key pair in memory.
type MemoryStore struct {
	mu  sync.Mutex
	rec *record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (s *MemoryStore) Load() (*crypto.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, ErrNotFound
	}
	return s.rec.keyPair()
}

// Save implements Store.
func (s *MemoryStore) Save(kp *crypto.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := newRecord(kp)
	s.rec = &rec
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)
