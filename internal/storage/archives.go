package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// ArchiveStore keeps exported archives under archives/<id>.<ext>.
type ArchiveStore struct {
	target    Target
	extension string
	logger    *slog.Logger
}

// NewArchiveStore wraps target. ext defaults to "pdsprj".
func NewArchiveStore(target Target, ext string, logger *slog.Logger) *ArchiveStore {
	if ext == "" {
		ext = "pdsprj"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveStore{target: target, extension: ext, logger: logger}
}

// Target returns the underlying Target.
func (s *ArchiveStore) Target() Target {
	return s.target
}

// Extension returns the archive file extension without the dot.
func (s *ArchiveStore) Extension() string {
	return s.extension
}

func (s *ArchiveStore) key(id string) string {
	return "archives/" + id + "." + s.extension
}

// Save stores the archive and returns its new id.
func (s *ArchiveStore) Save(ctx context.Context, a domain.ExportedArchive) (string, error) {
	id := uuid.NewString()
	err := s.target.Put(ctx, s.key(id), bytes.NewReader(a.Data), PutOptions{
		ContentType: "application/zip",
		Metadata: map[string]string{
			"file-name": a.FileName,
			"checksum":  a.Checksum,
		},
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("archive stored",
		"archive_id", id,
		"target", s.target.Name(),
		"size", len(a.Data),
	)
	return id, nil
}

// Load returns the stored archive bytes. Ids that are not UUIDs are
// reported as ErrNotFound.
func (s *ArchiveStore) Load(ctx context.Context, id string) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	rc, err := s.target.Get(ctx, s.key(id))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", id, err)
	}
	return data, nil
}

// Remove deletes a stored archive.
func (s *ArchiveStore) Remove(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return s.target.Delete(ctx, s.key(id))
}
