package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"defectmaster-backend/internal/shared/storage/photos"
)

// Store keeps photos on the local filesystem, for development and tests. The
// returned URLs assume something serves baseDir at publicBaseURL.
type Store struct {
	baseDir       string
	publicBaseURL string
}

// New creates a local photo store rooted at baseDir.
func New(baseDir, publicBaseURL string) *Store {
	return &Store{baseDir: baseDir, publicBaseURL: publicBaseURL}
}

func (s *Store) Save(ctx context.Context, userID string, photo []byte) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	key := photos.BuildKey(userID)
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, bytes.NewReader(photo)); err != nil {
		return "", "", fmt.Errorf("write body: %w", err)
	}
	return key, photos.JoinURL(s.publicBaseURL, key), nil
}

func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := filepath.Clean(filepath.FromSlash(storageKey))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid storage key")
	}
	return os.Open(filepath.Join(s.baseDir, clean))
}

var _ photos.Store = (*Store)(nil)
