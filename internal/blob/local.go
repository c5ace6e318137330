package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes objects below a directory that the HTTP server exposes at /public/.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates root if needed. baseURL is the externally reachable origin of this
// service, e.g. https://lustra.example.com.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create public dir: %w", err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(_ context.Context, key, _ string, data []byte) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// URL ignores ttl: files under the public directory never expire.
func (s *LocalStore) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	u := (&url.URL{Path: "/public/" + key}).EscapedPath()
	return s.baseURL + u, nil
}
