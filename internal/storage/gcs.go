package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcsstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsTarget implements Target for Google Cloud Storage.
type gcsTarget struct {
	client *gcsstorage.Client
	bucket string
	prefix string
	name   string
}

// newGCSTarget uses Application Default Credentials, or the emulator
// endpoint when one is configured.
func newGCSTarget(cfg Config) (Target, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := gcsstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	return &gcsTarget{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
		name:   cfg.Name,
	}, nil
}

func (t *gcsTarget) Name() string {
	return t.name
}

func (t *gcsTarget) obj(key string) *gcsstorage.ObjectHandle {
	return t.client.Bucket(t.bucket).Object(t.prefix + key)
}

func (t *gcsTarget) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error {
	w := t.obj(key).NewWriter(ctx)
	if opts.ContentType != "" {
		w.ContentType = opts.ContentType
	}
	if len(opts.Metadata) > 0 {
		w.Metadata = opts.Metadata
	}

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return fmt.Errorf("gcs write %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close writer %q: %w", key, err)
	}
	return nil
}

func (t *gcsTarget) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := t.obj(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcsstorage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gcs NewReader %q: %w", key, err)
	}
	return r, nil
}

func (t *gcsTarget) Delete(ctx context.Context, key string) error {
	if err := t.obj(key).Delete(ctx); err != nil && !errors.Is(err, gcsstorage.ErrObjectNotExist) {
		return fmt.Errorf("gcs Delete %q: %w", key, err)
	}
	return nil
}

func (t *gcsTarget) Ping(ctx context.Context) error {
	if _, err := t.client.Bucket(t.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket attrs %q: %w", t.bucket, err)
	}
	return nil
}
