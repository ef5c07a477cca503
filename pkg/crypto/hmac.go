package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HMACSHA256 computes the 32-byte HMAC-SHA256 of a message.
func HMACSHA256(key, message []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(message)
	return h.Sum(nil)
}

// HMACSHA256Verify reports whether mac is the HMAC-SHA256 of message under key.
// The comparison runs in constant time.
func HMACSHA256Verify(key, message, mac []byte) bool {
	return hmac.Equal(HMACSHA256(key, message), mac)
}
