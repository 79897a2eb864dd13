// Package blob stores uploaded image binaries. The production binary store
// is an external concern; this filesystem implementation keeps uploads under
// a single directory, keyed by uuid so concurrent uploads never collide.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store saves binaries and hands back a storage key plus a public URL.
type Store interface {
	Save(filename string, r io.Reader) (key string, url string, err error)
}

// FSStore writes blobs to a local directory and serves them under baseURL.
type FSStore struct {
	dir     string
	baseURL string
}

// NewFSStore creates the storage directory if needed.
func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: failed to create storage dir %s: %w", dir, err)
	}
	return &FSStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes the reader's contents under a fresh uuid key, preserving the
// original file extension so content type can be inferred on serving.
func (s *FSStore) Save(filename string, r io.Reader) (string, string, error) {
	key := uuid.NewString() + strings.ToLower(filepath.Ext(filename))

	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", "", fmt.Errorf("blob: failed to create file for key %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", "", fmt.Errorf("blob: failed to write blob %s: %w", key, err)
	}

	return key, s.baseURL + "/" + key, nil
}
