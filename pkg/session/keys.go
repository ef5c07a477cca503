package session

import (
	"encoding/binary"

	"github.com/backkem/teslable/pkg/crypto"
	"github.com/backkem/teslable/pkg/wire/universal"
)

// HKDF info strings for the two session keys.
var (
	infoEncryption     = []byte("authenticated command")
	infoAuthentication = []byte("authenticated command hmac")
)

// RequestAADSize is the length of the associated data bound to a request:
// three tag bytes, a 4-byte domain, a 4-byte counter and a 16-byte epoch.
const RequestAADSize = 1 + 4 + 1 + 4 + 1 + EpochSize

// DeriveKeys derives the session keys from an ECDH shared secret.
//
// The salt is epoch || clientKeyID || vehicleKeyID. Both sides of a session
// must use the same ordering.
func DeriveKeys(sharedSecret, epoch []byte, clientKeyID, vehicleKeyID [crypto.KeyIDSize]byte) (*Keys, error) {
	salt := make([]byte, 0, len(epoch)+2*crypto.KeyIDSize)
	salt = append(salt, epoch...)
	salt = append(salt, clientKeyID[:]...)
	salt = append(salt, vehicleKeyID[:]...)

	enc, err := crypto.HKDFSHA256(sharedSecret, salt, infoEncryption, crypto.SymmetricKeySize)
	if err != nil {
		return nil, err
	}
	auth, err := crypto.HKDFSHA256(sharedSecret, salt, infoAuthentication, crypto.SymmetricKeySize)
	if err != nil {
		return nil, err
	}

	keys := &Keys{}
	copy(keys.Encryption[:], enc)
	copy(keys.Authentication[:], auth)
	return keys, nil
}

// RequestAAD builds the associated data of an encrypted request:
//
//	TagDomain(0x01) || BE32(domain) || TagCounter(0x05) || BE32(counter) || TagEpoch(0x03) || epoch
//
// A nil epoch is encoded as 16 zero bytes.
func RequestAAD(domain universal.Domain, counter uint32, epoch []byte) []byte {
	aad := make([]byte, 0, RequestAADSize)
	aad = append(aad, byte(universal.TagDomain))
	aad = binary.BigEndian.AppendUint32(aad, uint32(domain))
	aad = append(aad, byte(universal.TagCounter))
	aad = binary.BigEndian.AppendUint32(aad, counter)
	aad = append(aad, byte(universal.TagEpoch))
	if epoch == nil {
		epoch = make([]byte, EpochSize)
	}
	return append(aad, epoch...)
}

// SessionInfoTag computes the tag authenticating encoded session info:
// HMAC-SHA256 under the session authentication key over challenge || encoded.
func SessionInfoTag(keys *Keys, challenge, encoded []byte) []byte {
	msg := make([]byte, 0, len(challenge)+len(encoded))
	msg = append(msg, challenge...)
	msg = append(msg, encoded...)
	return crypto.HMACSHA256(keys.Authentication[:], msg)
}

// VerifySessionInfoTag reports whether tag authenticates encoded session info
// for challenge. It runs in constant time.
func VerifySessionInfoTag(keys *Keys, challenge, encoded, tag []byte) bool {
	if keys == nil || len(tag) == 0 {
		return false
	}
	msg := make([]byte, 0, len(challenge)+len(encoded))
	msg = append(msg, challenge...)
	msg = append(msg, encoded...)
	return crypto.HMACSHA256Verify(keys.Authentication[:], msg, tag)
}

// splitTag separates ciphertext || tag as produced by crypto.AESGCMEncrypt.
func splitTag(sealed []byte) (ciphertext, tag []byte) {
	n := len(sealed) - crypto.AESGCMTagSize
	return sealed[:n], sealed[n:]
}

// joinTag rebuilds ciphertext || tag for crypto.AESGCMDecrypt.
func joinTag(ciphertext, tag []byte) []byte {
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	return append(sealed, tag...)
}
