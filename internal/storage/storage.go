// Package storage retains exported archives in object storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// PutOptions controls optional behavior of Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Target is a flat key/value object store.
type Target interface {
	// Put writes an object unconditionally.
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error
	// Get returns the object body. Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping checks that the bucket or container is reachable.
	Ping(ctx context.Context) error
	// Name returns the target name for logging.
	Name() string
}

// Config selects and configures a Target.
type Config struct {
	Name           string
	Type           string // "memory", "s3", "gcs", "azure"
	Bucket         string
	Region         string
	Endpoint       string
	UsePathStyle   bool
	Prefix         string
	StorageAccount string
	Container      string
	MaxRetries     int
}
