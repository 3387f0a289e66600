package repository

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the hex encoded sha256 of an API token. Only hashes are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
