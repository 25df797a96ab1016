// Package objectstore stores uploaded file bytes by key. Two backends are
// provided: an in-memory store for development and tests, and an
// S3-compatible store.
package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrEmptyKey    = errors.New("object key is required")
	ErrTooLarge    = errors.New("object exceeds maximum allowed size")
	ErrSizeUnknown = errors.New("object size is required")
)

// Object describes a stored object.
type Object struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
	// URL returns the public URL template <base>/<bucket>/<key>.
	URL(key string) string
}

// Presigner is implemented by backends that can hand out time-limited
// download links.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// PublicURL joins base, bucket and key with single slashes.
func PublicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Trim(bucket, "/") + "/" + strings.TrimLeft(key, "/")
}
