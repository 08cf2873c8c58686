package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes an access token so it never appears in a cache key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
