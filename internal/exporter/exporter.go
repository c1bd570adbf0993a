// Package exporter packages generated HDL into a Proteus project archive.
package exporter

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

const (
	// DefaultExtension is the archive file extension Proteus opens.
	DefaultExtension = "pdsprj"

	// ManifestName is the manifest entry inside the archive.
	ManifestName = "project_info.json"

	// ReadmeName is the optional human-readable entry.
	ReadmeName = "README.txt"

	// ArtifactDir prefixes compiled artifact entries.
	ArtifactDir = "artifacts/"

	// GeneratedBy is written into every manifest.
	GeneratedBy = "HDL AI Proteus"

	maxDiagnostics = 8 << 10
)

// entryTime is stamped on every entry so identical inputs give identical bytes.
var entryTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// ExportFailedError reports an archive assembly failure.
type ExportFailedError struct {
	Op  string
	Err error
}

func (e *ExportFailedError) Error() string {
	return fmt.Sprintf("export failed: %s: %v", e.Op, e.Err)
}

func (e *ExportFailedError) Unwrap() error { return e.Err }

// Input is everything an archive is built from.
type Input struct {
	CircuitName string
	Source      domain.AnalyzedSource
	Outcome     domain.CompilationOutcome
	Provider    domain.ProviderKind
	Model       string
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source for the manifest timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithReadme toggles the README.txt entry.
func WithReadme(enabled bool) Option {
	return func(e *Exporter) {
		e.readme = enabled
	}
}

// WithExtension sets the archive file extension.
func WithExtension(ext string) Option {
	return func(e *Exporter) {
		if ext != "" {
			e.extension = ext
		}
	}
}

// Exporter builds archives in memory. It is safe for concurrent use.
type Exporter struct {
	logger    *slog.Logger
	now       func() time.Time
	readme    bool
	extension string
}

// New creates an Exporter that includes a README by default.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		logger:    slog.Default(),
		now:       time.Now,
		readme:    true,
		extension: DefaultExtension,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes the source, the manifest, the compiled artifacts and the
// README, in that order. A failed compilation still yields an archive.
func (e *Exporter) Export(in Input) (domain.ExportedArchive, error) {
	generatedAt := e.now().UTC()
	sourceName := in.CircuitName + "." + in.Source.Dialect.Extension()

	artifacts := in.Outcome.Artifacts
	if !in.Outcome.Success {
		artifacts = nil
	}

	manifest := BuildManifest(in, artifacts, generatedAt)
	manifestJSON, err := canonicalJSON(manifest)
	if err != nil {
		return domain.ExportedArchive{}, &ExportFailedError{Op: "encode manifest", Err: err}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := writeEntry(zw, sourceName, []byte(in.Source.Source)); err != nil {
		return domain.ExportedArchive{}, &ExportFailedError{Op: "write source", Err: err}
	}
	if err := writeEntry(zw, ManifestName, manifestJSON); err != nil {
		return domain.ExportedArchive{}, &ExportFailedError{Op: "write manifest", Err: err}
	}
	for _, a := range sortedArtifacts(artifacts) {
		if err := writeEntry(zw, ArtifactDir+a.Name, a.Data); err != nil {
			return domain.ExportedArchive{}, &ExportFailedError{Op: "write artifact", Err: err}
		}
	}
	if e.readme {
		if err := writeEntry(zw, ReadmeName, []byte(Readme(in, manifest))); err != nil {
			return domain.ExportedArchive{}, &ExportFailedError{Op: "write readme", Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return domain.ExportedArchive{}, &ExportFailedError{Op: "finalize archive", Err: errors.Wrap(err, "close zip writer")}
	}

	data := buf.Bytes()
	sum := sha256.Sum256(data)
	archive := domain.ExportedArchive{
		FileName:    in.CircuitName + "." + e.extension,
		Data:        data,
		Manifest:    manifest,
		Checksum:    "sha256:" + hex.EncodeToString(sum[:]),
		GeneratedAt: generatedAt,
	}

	e.logger.Debug("archive exported",
		"file", archive.FileName,
		"size", len(data),
		"artifacts", len(manifest.Artifacts),
		"checksum", archive.Checksum,
	)
	return archive, nil
}

// BuildManifest assembles the manifest record. Nothing from the provider
// config other than its kind and model reaches it.
func BuildManifest(in Input, artifacts []domain.Artifact, generatedAt time.Time) domain.Manifest {
	out := in.Outcome
	diag := out.Stderr
	if len(diag) > maxDiagnostics {
		cut := maxDiagnostics
		for cut > 0 && !utf8.RuneStart(diag[cut]) {
			cut--
		}
		diag = diag[:cut] + "\n[truncated]"
	}

	m := domain.Manifest{
		ProjectName:         in.CircuitName,
		HDLLanguage:         in.Source.Dialect,
		DesignUnit:          in.Source.DesignUnit,
		DesignUnitExtracted: !in.Source.ExtractionFailed,
		Provider:            string(in.Provider),
		Model:               in.Model,
		GeneratedBy:         GeneratedBy,
		GeneratedAt:         generatedAt.Format(time.RFC3339),
		Validated:           out.Success,
		HasTestbench:        in.Source.HasTestbench,
		Compilation: domain.ManifestCompilation{
			State:       out.State,
			Success:     out.Success,
			Attempted:   out.Attempted,
			Toolchain:   out.Toolchain,
			FailedStep:  out.FailedStep,
			DurationMS:  out.Duration.Milliseconds(),
			Summary:     out.Summary(),
			Diagnostics: diag,
		},
		Counts:       in.Source.Counts,
		SourceSHA256: digest([]byte(in.Source.Source)),
		Artifacts:    []domain.ManifestArtifact{},
	}
	if m.Counts.Libraries == nil {
		m.Counts.Libraries = []string{}
	}
	for _, a := range sortedArtifacts(artifacts) {
		m.Artifacts = append(m.Artifacts, domain.ManifestArtifact{
			Name:   ArtifactDir + a.Name,
			Size:   len(a.Data),
			SHA256: digest(a.Data),
		})
	}
	return m
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	})
	if err != nil {
		return errors.Wrapf(err, "create entry %s", name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return errors.Wrapf(err, "write entry %s", name)
	}
	return nil
}

// canonicalJSON renders v with object keys sorted at every level.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal")
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}
	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal sorted")
	}
	return append(out, '\n'), nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
