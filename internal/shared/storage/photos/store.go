// Package photos persists analysis photos and hands back a public URL the
// messaging frontend can embed.
package photos

import (
	"context"
	"encoding/hex"
	"io"
	"strings"

	"github.com/google/uuid"

	"defectmaster-backend/internal/shared/util"
)

// Store is the contract for photo persistence. Save returns the storage key
// and a publicly reachable URL for the stored photo.
type Store interface {
	Save(ctx context.Context, userID string, photo []byte) (storageKey string, publicURL string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// BuildKey derives a fresh storage key for a user's photo: a hashed user
// namespace and a random hex name, always stored as JPEG.
func BuildKey(userID string) string {
	id := uuid.New()
	return util.HashUserKey(userID) + "/" + hex.EncodeToString(id[:]) + ".jpg"
}

// JoinURL joins a base URL and a storage key without doubling slashes.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
