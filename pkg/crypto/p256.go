package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

const (
	// P256PrivateKeySize is the size of a P-256 private scalar in bytes.
	P256PrivateKeySize = 32

	// P256PublicKeySize is the uncompressed public key size.
	// Format: 0x04 || X (32 bytes) || Y (32 bytes) = 65 bytes
	P256PublicKeySize = 65

	// SharedSecretSize is the size of an ECDH shared secret (the X coordinate).
	SharedSecretSize = 32
)

// KeyPair is a P-256 key pair used for session key agreement.
// The private scalar never leaves the process except through PrivateKey.
type KeyPair struct {
	private *ecdh.PrivateKey
}

// GenerateKeyPair generates a new random P-256 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate P-256 key: %w", err)
	}
	return &KeyPair{private: priv}, nil
}

// KeyPairFromPrivateKey loads a key pair from a 32-byte private scalar.
func KeyPairFromPrivateKey(privateKey []byte) (*KeyPair, error) {
	if len(privateKey) != P256PrivateKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPrivateKey, P256PrivateKeySize, len(privateKey))
	}
	priv, err := ecdh.P256().NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return &KeyPair{private: priv}, nil
}

// PublicKey returns the public key in uncompressed format (65 bytes).
func (kp *KeyPair) PublicKey() []byte {
	return kp.private.PublicKey().Bytes()
}

// PrivateKey returns the private key as a 32-byte scalar.
func (kp *KeyPair) PrivateKey() []byte {
	return kp.private.Bytes()
}

// KeyID returns the 4-byte identifier of this key pair's public key.
func (kp *KeyPair) KeyID() [KeyIDSize]byte {
	return DeriveKeyID(kp.PublicKey())
}

// ECDH computes the shared secret with a peer's uncompressed public key.
// Returns the 32-byte X coordinate of the shared point.
//
// The peer key must be exactly 65 bytes, start with 0x04 and lie on the curve;
// anything else returns ErrInvalidPeerKey.
func (kp *KeyPair) ECDH(peerPublicKey []byte) ([]byte, error) {
	peer, err := ParsePublicKey(peerPublicKey)
	if err != nil {
		return nil, err
	}
	secret, err := kp.private.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeerKey, err)
	}
	return secret, nil
}

// ParsePublicKey validates and parses an uncompressed P-256 public key.
func ParsePublicKey(publicKey []byte) (*ecdh.PublicKey, error) {
	if len(publicKey) != P256PublicKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPeerKey, P256PublicKeySize, len(publicKey))
	}
	if publicKey[0] != 0x04 {
		return nil, fmt.Errorf("%w: not in uncompressed format", ErrInvalidPeerKey)
	}
	pub, err := ecdh.P256().NewPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeerKey, err)
	}
	return pub, nil
}

// ValidatePublicKey reports whether publicKey is a valid uncompressed P-256 point.
func ValidatePublicKey(publicKey []byte) error {
	_, err := ParsePublicKey(publicKey)
	return err
}
