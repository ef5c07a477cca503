package session

import (
	"bytes"
	"fmt"

	"github.com/backkem/teslable/pkg/crypto"
	"github.com/backkem/teslable/pkg/wire/universal"
)

// Peer is the vehicle side of one domain session. It opens requests wrapped
// by a Manager and seals responses for it.
type Peer struct {
	Domain universal.Domain
	Epoch  []byte
	Keys   *Keys

	// Counter is the last accepted request counter.
	Counter uint32
}

// NewPeer derives the vehicle-side keys for a session. clientKeyID and
// vehicleKeyID are ordered the same way as on the client.
func NewPeer(domain universal.Domain, sharedSecret, epoch []byte, counter uint32, clientKeyID, vehicleKeyID [crypto.KeyIDSize]byte) (*Peer, error) {
	if len(epoch) != EpochSize {
		return nil, ErrMissingEpoch
	}
	keys, err := DeriveKeys(sharedSecret, epoch, clientKeyID, vehicleKeyID)
	if err != nil {
		return nil, err
	}
	return &Peer{
		Domain:  domain,
		Epoch:   cloneBytes(epoch),
		Keys:    keys,
		Counter: counter,
	}, nil
}

// SignSessionInfo returns the tag for encoded session info answering a
// request that carried challenge.
func (p *Peer) SignSessionInfo(challenge, encoded []byte) []byte {
	return SessionInfoTag(p.Keys, challenge, encoded)
}

// OpenRequest verifies and decrypts a wrapped request. The counter must
// advance and the epoch must match; on success the counter is recorded.
func (p *Peer) OpenRequest(msg *universal.RoutableMessage) ([]byte, error) {
	if msg.SignatureData == nil || msg.SignatureData.AESGCMPersonalized == nil {
		return nil, ErrMissingSignature
	}
	sig := msg.SignatureData.AESGCMPersonalized
	if !bytes.Equal(sig.Epoch, p.Epoch) {
		return nil, ErrIncorrectEpoch
	}
	if sig.Counter <= p.Counter {
		return nil, fmt.Errorf("%w: got %d, last %d", ErrStaleCounter, sig.Counter, p.Counter)
	}
	if len(sig.Tag) != crypto.AESGCMTagSize {
		return nil, ErrAuthenticationFailed
	}

	aad := RequestAAD(p.Domain, sig.Counter, p.Epoch)
	plaintext, err := crypto.AESGCMDecrypt(p.Keys.Encryption[:], sig.Nonce, joinTag(msg.ProtobufMessageAsBytes, sig.Tag), aad)
	if err != nil {
		return nil, err
	}
	p.Counter = sig.Counter
	return plaintext, nil
}

// SealResponse encrypts payload with empty associated data and returns the
// ciphertext with its response signature metadata.
func (p *Peer) SealResponse(payload []byte) ([]byte, *universal.AESGCMResponseData, error) {
	nonce, err := crypto.RandomBytes(crypto.AESGCMNonceSize)
	if err != nil {
		return nil, nil, err
	}
	sealed, err := crypto.AESGCMEncrypt(p.Keys.Encryption[:], nonce, payload, nil)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, tag := splitTag(sealed)
	return ciphertext, &universal.AESGCMResponseData{
		Nonce:   nonce,
		Counter: p.Counter,
		Tag:     tag,
	}, nil
}
