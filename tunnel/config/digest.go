package config

import (
	"crypto/sha256"
	"encoding/hex"
)

// DefaultSalt is appended to the password when no salt is configured. Both
// peers have to use the same salt.
const DefaultSalt = "saltmakesfoodtastegood"

// DigestSize is the length of the digest sent over the wire.
const DigestSize = sha256.Size * 2

// Digest returns the lowercase hex SHA-256 of password followed by salt.
func Digest(password string, salt string) []byte {
	if salt == "" {
		salt = DefaultSalt
	}
	h := sha256.New()
	h.Write([]byte(password))
	h.Write([]byte(salt))
	sum := h.Sum(nil)
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum)
	return out
}
