package keystore

import (
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/backkem/teslable/pkg/crypto"
)

const sealedVersion = 1

type scryptParams struct {
	N, R, P int
}

var defaultScryptParams = scryptParams{N: 1 << 15, R: 8, P: 1}

// sealedFile is the on-disk form of a passphrase-protected key file.
type sealedFile struct {
	V          int    `json:"v"`
	Salt       []byte `json:"salt"`
	N          int    `json:"n"`
	R          int    `json:"r"`
	P          int    `json:"p"`
	Ciphertext []byte `json:"ciphertext"`
}

// seal encrypts plaintext under a key derived from passphrase and a fresh
// salt. The nonce is always zero.
func seal(passphrase string, plaintext []byte, params scryptParams) ([]byte, error) {
	salt, err := crypto.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt, params.N, params.R, params.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	return json.MarshalIndent(sealedFile{
		V:          sealedVersion,
		Salt:       salt,
		N:          params.N,
		R:          params.R,
		P:          params.P,
		Ciphertext: aead.Seal(nil, nonce[:], plaintext, salt),
	}, "", "  ")
}

func open(passphrase string, b []byte) ([]byte, error) {
	var f sealedFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyPair, err)
	}
	if f.V > sealedVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.V)
	}
	key, err := scrypt.Key([]byte(passphrase), f.Salt, f.N, f.R, f.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyPair, err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	plaintext, err := aead.Open(nil, nonce[:], f.Ciphertext, f.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}
