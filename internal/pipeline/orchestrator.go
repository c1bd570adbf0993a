// Package pipeline sequences generation, analysis, compilation and export
// for one request.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/noejunior792/hdl-ai-proteus/internal/analyzer"
	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
	"github.com/noejunior792/hdl-ai-proteus/internal/events"
	"github.com/noejunior792/hdl-ai-proteus/internal/exporter"
	"github.com/noejunior792/hdl-ai-proteus/internal/provider"
)

// ProviderFactory resolves provider kinds and builds adapters.
type ProviderFactory interface {
	Resolve(kind string) (domain.ProviderKind, error)
	New(cfg domain.ProviderConfig) (provider.Provider, error)
}

// Compiler validates analyzed source.
type Compiler interface {
	Compile(ctx context.Context, dialect domain.Dialect, source, unit string) (domain.CompilationOutcome, error)
}

// Exporter packages the results.
type Exporter interface {
	Export(in exporter.Input) (domain.ExportedArchive, error)
}

// ArchiveSaver retains exported archives.
type ArchiveSaver interface {
	Save(ctx context.Context, a domain.ExportedArchive) (string, error)
}

// Result is the outcome of a successful run.
type Result struct {
	Archive  domain.ExportedArchive
	Metadata domain.ResultMetadata
	Source   domain.AnalyzedSource
	Outcome  domain.CompilationOutcome
	Raw      domain.RawGenerationResult
}

// Orchestrator runs the pipeline. It holds no per-request state; every Run
// call owns its entities.
type Orchestrator struct {
	providers   ProviderFactory
	analyzer    *analyzer.Analyzer
	compiler    Compiler
	exporter    Exporter
	archives    ArchiveSaver
	events      events.Publisher
	metrics     *Metrics
	credentials map[domain.ProviderKind]*domain.CredentialRing
	maxAttempts int
	retryDelay  time.Duration
	maxWait     time.Duration
	preflight   bool
	maxPrompt   int
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAnalyzer replaces the default analyzer.
func WithAnalyzer(a *analyzer.Analyzer) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.analyzer = a
		}
	}
}

// WithArchiveSaver retains every exported archive.
func WithArchiveSaver(s ArchiveSaver) Option {
	return func(o *Orchestrator) {
		o.archives = s
	}
}

// WithEvents sets the event publisher.
func WithEvents(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.events = p
		}
	}
}

// WithMetrics records prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithCredentials supplies server-side keys for requests of kind that omit
// their own.
func WithCredentials(kind domain.ProviderKind, ring *domain.CredentialRing) Option {
	return func(o *Orchestrator) {
		if ring != nil && ring.Total() > 0 {
			o.credentials[kind] = ring
		}
	}
}

// WithRetry sets the total provider attempts and the base delay between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.maxAttempts = attempts
		}
		if delay >= 0 {
			o.retryDelay = delay
		}
	}
}

// WithConnectionCheck toggles the TestConnection call before generating.
func WithConnectionCheck(enabled bool) Option {
	return func(o *Orchestrator) {
		o.preflight = enabled
	}
}

// WithMaxPromptLength caps prompt length in characters.
func WithMaxPromptLength(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxPrompt = n
		}
	}
}

// New creates an Orchestrator.
func New(providers ProviderFactory, compiler Compiler, exp Exporter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers:   providers,
		analyzer:    analyzer.New(),
		compiler:    compiler,
		exporter:    exp,
		events:      events.Noop{},
		credentials: make(map[domain.ProviderKind]*domain.CredentialRing),
		maxAttempts: 3,
		retryDelay:  time.Second,
		maxWait:     30 * time.Second,
		preflight:   true,
		maxPrompt:   domain.MaxPromptLength,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type requestIDKey struct{}

// WithRequestID returns a context that makes Run reuse id instead of
// minting a new one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id stored by WithRequestID, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// run carries the state of one Run call.
type run struct {
	id       string
	req      domain.GenerationRequest
	kind     domain.ProviderKind
	start    time.Time
	attempts int
	logger   *slog.Logger
}

// Run executes the pipeline for req.
//
// Config, provider, analysis and export failures abort with a *StageError
// and no archive. Compilation failures and a missing toolchain do not:
// the archive is still produced and its manifest records the outcome.
func (o *Orchestrator) Run(ctx context.Context, req domain.GenerationRequest) (res *Result, err error) {
	id := RequestIDFrom(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	r := &run{
		id:    id,
		req:   req,
		kind:  "unknown",
		start: time.Now(),
	}
	r.logger = o.logger.With("request_id", r.id, "circuit", req.CircuitName)

	defer func() { o.finish(ctx, r, res, err) }()

	if err := req.Validate(o.maxPrompt); err != nil {
		return nil, &StageError{Stage: StageValidate, Err: err}
	}

	p, raw, err := o.generate(ctx, r)
	if err != nil {
		return nil, err
	}

	stageStart := time.Now()
	src, err := o.analyzer.Analyze(raw.Text, req.CircuitName)
	o.metrics.observeStage(StageAnalyze, stageStart)
	if err != nil {
		r.logger.Warn("analysis failed", "error", err, "response_chars", len(raw.Text))
		return nil, &StageError{Stage: StageAnalyze, Err: err}
	}
	r.logger.Info("source analyzed",
		"stage", StageAnalyze,
		"dialect", src.Dialect,
		"design_unit", src.DesignUnit,
		"extraction_failed", src.ExtractionFailed,
		"duration", time.Since(stageStart),
	)

	stageStart = time.Now()
	outcome, err := o.compiler.Compile(ctx, src.Dialect, src.Source, src.DesignUnit)
	o.metrics.observeStage(StageCompile, stageStart)
	if err != nil {
		return nil, &StageError{Stage: StageCompile, Err: err}
	}
	o.metrics.compilation(string(src.Dialect), string(outcome.State))
	r.logger.Info("compilation finished",
		"stage", StageCompile,
		"state", outcome.State,
		"failed_step", outcome.FailedStep,
		"duration", outcome.Duration,
	)

	stageStart = time.Now()
	archive, err := o.exporter.Export(exporter.Input{
		CircuitName: req.CircuitName,
		Source:      src,
		Outcome:     outcome,
		Provider:    p.Kind(),
		Model:       raw.Model,
	})
	o.metrics.observeStage(StageExport, stageStart)
	if err != nil {
		r.logger.Error("export failed", "error", err)
		return nil, &StageError{Stage: StageExport, Err: err}
	}

	var archiveID string
	if o.archives != nil {
		stageStart = time.Now()
		archiveID, err = o.archives.Save(ctx, archive)
		o.metrics.observeStage(StageStore, stageStart)
		if err != nil {
			r.logger.Warn("archive retention failed", "error", err)
			archiveID, err = "", nil
		}
	}

	res = &Result{
		Archive: archive,
		Source:  src,
		Outcome: outcome,
		Raw:     raw,
		Metadata: domain.ResultMetadata{
			RequestID:          r.id,
			CircuitName:        req.CircuitName,
			HDLLanguage:        src.Dialect,
			DesignUnit:         src.DesignUnit,
			ProviderUsed:       string(p.Kind()),
			ModelUsed:          raw.Model,
			CompilationSuccess: outcome.Success,
			CompilationState:   outcome.State,
			Counts:             src.Counts,
			HasTestbench:       src.HasTestbench,
			Usage:              raw.Usage,
			FileName:           archive.FileName,
			FileSize:           len(archive.Data),
			Checksum:           archive.Checksum,
			ArchiveID:          archiveID,
			Attempts:           r.attempts,
			DurationMS:         time.Since(r.start).Milliseconds(),
		},
	}
	return res, nil
}

// generate resolves the provider and calls it, retrying transient failures
// and rotating pooled credentials.
func (o *Orchestrator) generate(ctx context.Context, r *run) (provider.Provider, domain.RawGenerationResult, error) {
	stageStart := time.Now()
	defer o.metrics.observeStage(StageGenerate, stageStart)

	kind, err := o.providers.Resolve(r.req.Provider.Kind)
	if err != nil {
		return nil, domain.RawGenerationResult{}, &StageError{Stage: StageProvider, Err: err}
	}
	r.kind = kind

	cfg := r.req.Provider
	ring := o.credentials[kind]
	pooled := cfg.APIKey == "" && ring != nil

	if pooled {
		key, err := ring.Next()
		if err != nil {
			return nil, domain.RawGenerationResult{}, &StageError{Stage: StageProvider, Err: err}
		}
		cfg.APIKey = key
	}

	p, err := o.providers.New(cfg)
	if err != nil {
		return nil, domain.RawGenerationResult{}, &StageError{Stage: StageProvider, Err: err}
	}
	if err := p.ValidateConfig(); err != nil {
		return nil, domain.RawGenerationResult{}, &StageError{Stage: StageProvider, Err: err}
	}

	checked := !o.preflight
	for {
		r.attempts++
		raw, err := o.call(ctx, p, r, &checked)
		if err == nil {
			o.metrics.attempt(string(p.Kind()), "ok")
			r.logger.Info("generation complete",
				"stage", StageGenerate,
				"provider", p.Kind(),
				"model", raw.Model,
				"attempt", r.attempts,
				"duration", raw.Elapsed,
			)
			return p, raw, nil
		}
		o.metrics.attempt(string(p.Kind()), ErrorCode(err))
		r.logger.Warn("provider call failed",
			"provider", p.Kind(),
			"attempt", r.attempts,
			"error", err,
		)

		if ctx.Err() != nil || r.attempts >= o.maxAttempts {
			return nil, domain.RawGenerationResult{}, &StageError{Stage: StageGenerate, Err: err}
		}

		switch {
		case pooled && (provider.IsAuthError(err) || provider.IsQuotaError(err)):
			ring.Park(cfg.APIKey)
			key, nextErr := ring.Next()
			if nextErr != nil {
				return nil, domain.RawGenerationResult{}, &StageError{Stage: StageGenerate, Err: err}
			}
			cfg.APIKey = key
			next, newErr := o.providers.New(cfg)
			if newErr != nil {
				return nil, domain.RawGenerationResult{}, &StageError{Stage: StageProvider, Err: newErr}
			}
			p = next
			checked = !o.preflight
			if provider.IsAuthError(err) {
				continue
			}
		case !provider.IsRetryable(err):
			return nil, domain.RawGenerationResult{}, &StageError{Stage: StageGenerate, Err: err}
		}

		if err := o.wait(ctx, r.attempts, err); err != nil {
			return nil, domain.RawGenerationResult{}, &StageError{Stage: StageGenerate, Err: err}
		}
	}
}

// call runs the optional connection check once per adapter, then Generate.
func (o *Orchestrator) call(ctx context.Context, p provider.Provider, r *run, checked *bool) (domain.RawGenerationResult, error) {
	if !*checked {
		conn, err := p.TestConnection(ctx)
		if err != nil {
			return domain.RawGenerationResult{}, err
		}
		*checked = true
		r.logger.Debug("provider reachable", "provider", p.Kind(), "latency", conn.Latency)
	}
	return p.Generate(ctx, r.req.Prompt, r.req.Tuning)
}

// wait sleeps before the next attempt, honoring Retry-After on quota errors.
func (o *Orchestrator) wait(ctx context.Context, attempt int, cause error) error {
	d := o.retryDelay * time.Duration(attempt)
	var qe *provider.QuotaError
	if errors.As(cause, &qe) && qe.RetryAfter > d {
		d = qe.RetryAfter
	}
	if d > o.maxWait {
		d = o.maxWait
	}
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// finish records metrics and publishes the completion event.
func (o *Orchestrator) finish(ctx context.Context, r *run, res *Result, err error) {
	code := ErrorCode(err)
	outcome := "success"
	if err != nil {
		outcome = code
	}
	o.metrics.generation(string(r.kind), outcome)

	ev := events.GenerationEvent{
		RequestID:  r.id,
		Circuit:    r.req.CircuitName,
		Provider:   string(r.kind),
		Success:    err == nil,
		ErrorCode:  code,
		DurationMS: time.Since(r.start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if res != nil {
		ev.Model = res.Raw.Model
		ev.Dialect = string(res.Source.Dialect)
		ev.CompilationState = string(res.Outcome.State)
	}

	// The request context may already be cancelled; the event still goes out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if perr := o.events.Publish(pubCtx, ev); perr != nil {
		r.logger.Warn("event publish failed", "error", perr)
	}

	if err != nil {
		r.logger.Error("generation failed",
			"code", code,
			"error", err,
			"hint", provider.Hint(err),
			"duration", time.Since(r.start),
		)
	}
}
