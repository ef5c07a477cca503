package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// AES-GCM parameters used by the vehicle protocol.
const (
	// SymmetricKeySize is the AES-128 key size in bytes.
	SymmetricKeySize = 16

	// AESGCMNonceSize is the nonce size in bytes.
	AESGCMNonceSize = 12

	// AESGCMTagSize is the authentication tag size in bytes.
	AESGCMTagSize = 16
)

func newGCM(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != SymmetricKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	if len(nonce) != AESGCMNonceSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidNonceSize, len(nonce))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// AESGCMEncrypt encrypts data with AES-128-GCM.
// Returns ciphertext || 16-byte tag.
func AESGCMEncrypt(key, nonce, data, aad []byte) ([]byte, error) {
	aead, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, data, aad), nil
}

// AESGCMDecrypt decrypts ciphertext || tag produced by AESGCMEncrypt.
// A tag mismatch (wrong key, nonce, AAD or tampered data) returns
// ErrAuthenticationFailed and no plaintext.
func AESGCMDecrypt(key, nonce, data, aad []byte) ([]byte, error) {
	aead, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	if len(data) < AESGCMTagSize {
		return nil, ErrAuthenticationFailed
	}
	plaintext, err := aead.Open(nil, nonce, data, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// RandomBytes returns n bytes from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
