package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIdentityKey returns a filesystem-safe identifier for an identity string.
func HashIdentityKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
