package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserKey derives a stable storage namespace from a platform user id so
// that object keys never expose the raw identifier.
func HashUserKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:32]
}
