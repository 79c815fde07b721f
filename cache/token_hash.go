package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken shortens a bearer string to a fixed-size cache key. Storing the
// hash also keeps raw tokens out of the cache backend.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
