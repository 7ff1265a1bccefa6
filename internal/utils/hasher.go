package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex SHA-256 digest of input.
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ShortHash is the first 16 hex characters of Hash, enough for cache key suffixes.
func ShortHash(input string) string {
	return Hash(input)[:16]
}
