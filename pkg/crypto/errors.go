package crypto

import "errors"

// Crypto errors.
var (
	// ErrInvalidPeerKey is returned when a peer public key is malformed or
	// not a point on the P-256 curve.
	ErrInvalidPeerKey = errors.New("crypto: invalid peer public key")

	// ErrInvalidPrivateKey is returned when a private scalar cannot be loaded.
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")

	// ErrAuthenticationFailed is returned when an AEAD tag does not verify.
	// No plaintext is ever returned alongside this error.
	ErrAuthenticationFailed = errors.New("crypto: message authentication failed")

	// ErrInvalidKeySize is returned for symmetric keys of the wrong length.
	ErrInvalidKeySize = errors.New("crypto: invalid symmetric key size")

	// ErrInvalidNonceSize is returned for AES-GCM nonces that are not 12 bytes.
	ErrInvalidNonceSize = errors.New("crypto: invalid nonce size")
)
