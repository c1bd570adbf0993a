package handler

import (
	"context"
	"log/slog"

	"github.com/noejunior792/hdl-ai-proteus/internal/compiler"
	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
	"github.com/noejunior792/hdl-ai-proteus/internal/events"
	"github.com/noejunior792/hdl-ai-proteus/internal/pipeline"
	"github.com/noejunior792/hdl-ai-proteus/internal/provider"
)

// Generator runs one generation request end to end.
type Generator interface {
	Run(ctx context.Context, req domain.GenerationRequest) (*pipeline.Result, error)
}

// ArchiveReader serves retained archives.
type ArchiveReader interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Remove(ctx context.Context, id string) error
	Extension() string
}

// ToolchainReporter reports which HDL toolchains resolve on this host.
type ToolchainReporter interface {
	Availability() []compiler.Toolchain
}

// HealthCheck checks one dependency for /health/deep.
type HealthCheck func(ctx context.Context) error

// Handler serves the HTTP API.
type Handler struct {
	pipeline    Generator
	registry    *provider.Registry
	cache       ResultCache
	archives    ArchiveReader
	breakers    *BreakerSet
	toolchains  ToolchainReporter
	events      events.Publisher
	checks      map[string]HealthCheck
	pooled      map[domain.ProviderKind]bool
	maxPrompt   int
	defaultKind string
	version     string
	console     bool
	logger      *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCache enables the result cache.
func WithCache(c ResultCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithArchives enables the archive download and delete endpoints.
func WithArchives(a ArchiveReader) Option {
	return func(h *Handler) { h.archives = a }
}

// WithBreakers guards /generate with per-kind circuit breakers.
func WithBreakers(b *BreakerSet) Option {
	return func(h *Handler) { h.breakers = b }
}

// WithToolchains reports toolchain availability on /health.
func WithToolchains(t ToolchainReporter) Option {
	return func(h *Handler) { h.toolchains = t }
}

// WithEvents sets the publisher used for cache-hit events.
func WithEvents(p events.Publisher) Option {
	return func(h *Handler) {
		if p != nil {
			h.events = p
		}
	}
}

// WithHealthCheck adds a named check to /health/deep.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) { h.checks[name] = check }
}

// WithPooledKinds names the kinds the server holds a credential pool for.
// Requests for those kinds may omit api_key.
func WithPooledKinds(kinds ...domain.ProviderKind) Option {
	return func(h *Handler) {
		for _, k := range kinds {
			h.pooled[k] = true
		}
	}
}

// WithMaxPromptLength bounds prompt length in characters.
func WithMaxPromptLength(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxPrompt = n
		}
	}
}

// WithDefaultKind is used when a request names no provider_type.
func WithDefaultKind(kind string) Option {
	return func(h *Handler) { h.defaultKind = kind }
}

// WithVersion is reported by /api/info and /health.
func WithVersion(v string) Option {
	return func(h *Handler) { h.version = v }
}

// WithConsole prints one colored line per generation.
func WithConsole(enabled bool) Option {
	return func(h *Handler) { h.console = enabled }
}

// New creates a Handler.
func New(gen Generator, registry *provider.Registry, opts ...Option) *Handler {
	h := &Handler{
		pipeline:    gen,
		registry:    registry,
		events:      events.Noop{},
		checks:      make(map[string]HealthCheck),
		pooled:      make(map[domain.ProviderKind]bool),
		maxPrompt:   domain.MaxPromptLength,
		defaultKind: string(domain.KindAzureOpenAI),
		version:     "dev",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
