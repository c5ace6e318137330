// Package blob publishes uploaded files somewhere an external provider can fetch them.
package blob

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrInvalidKey = errors.New("invalid blob key")

// Store writes objects and hands out URLs for them.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	// URL returns a link to key. A positive ttl asks for a link that expires; zero asks for
	// a permanent public link.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
