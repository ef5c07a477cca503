// Package crypto provides the cryptographic primitives used by the vehicle
// security protocol: P-256 key agreement, HKDF-SHA256 key derivation,
// AES-128-GCM message protection and HMAC-SHA256.
//
// Every function in this package is stateless.
package crypto

import "crypto/sha1"

// KeyIDSize is the length of a public key identifier.
const KeyIDSize = 4

// DeriveKeyID returns the 4-byte identifier of an uncompressed public key:
// the first four bytes of SHA-1(publicKey).
//
// Key IDs let peers refer to each other without transmitting full keys.
// SHA-1 is used as a truncated fingerprint here, not for collision resistance.
func DeriveKeyID(publicKey []byte) [KeyIDSize]byte {
	digest := sha1.Sum(publicKey)
	var id [KeyIDSize]byte
	copy(id[:], digest[:KeyIDSize])
	return id
}
