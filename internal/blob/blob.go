// Package blob stores uploaded statement files in a local directory or an
// S3-compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/theirongolddev/household/internal/config"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that are empty or escape the bucket.
var ErrInvalidKey = errors.New("invalid object key")

// Object describes a stored object. Size is -1 when the backend does not
// report it.
type Object struct {
	Key         string            `json:"key"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Bucket is a flat key/value object store.
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, obj Object) error
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, key string) error
}

// Open builds the bucket selected by the storage config.
func Open(ctx context.Context, cfg config.StorageConfig) (Bucket, error) {
	switch cfg.BlobBackend {
	case config.BlobFS, "":
		return NewFSBucket(cfg.BlobDirectory())
	case config.BlobS3:
		return NewS3Bucket(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
