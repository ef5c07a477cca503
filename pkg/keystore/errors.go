package keystore

import "errors"

// Keystore errors.
var (
	// ErrNotFound is returned by Load when no key pair has been saved.
	ErrNotFound = errors.New("keystore: key pair not found")

	// ErrInvalidKeyPair is returned when a stored key pair is malformed or
	// its public key does not match the private key.
	ErrInvalidKeyPair = errors.New("keystore: invalid key pair")

	// ErrWrongPassphrase is returned when a sealed key file cannot be opened.
	ErrWrongPassphrase = errors.New("keystore: wrong passphrase")

	// ErrUnsupportedVersion is returned for sealed files of a newer format.
	ErrUnsupportedVersion = errors.New("keystore: unsupported file version")
)
