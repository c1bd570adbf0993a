package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noejunior792/hdl-ai-proteus/internal/analyzer"
	"github.com/noejunior792/hdl-ai-proteus/internal/compiler"
	"github.com/noejunior792/hdl-ai-proteus/internal/config"
	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
	"github.com/noejunior792/hdl-ai-proteus/internal/events"
	"github.com/noejunior792/hdl-ai-proteus/internal/exporter"
	"github.com/noejunior792/hdl-ai-proteus/internal/handler"
	"github.com/noejunior792/hdl-ai-proteus/internal/pipeline"
	"github.com/noejunior792/hdl-ai-proteus/internal/provider"
	"github.com/noejunior792/hdl-ai-proteus/internal/storage"
)

// application is the fully wired service.
type application struct {
	router     *gin.Engine
	registry   *provider.Registry
	compiler   *compiler.Runner
	pooledKeys int
	closers    []func() error
	logger     *slog.Logger
}

// newApplication translates cfg into constructor options and wires every
// component. Nothing below cmd/server reads configuration itself.
func newApplication(cfg *config.Configuration, logger *slog.Logger) (*application, error) {
	app := &application{logger: logger}

	// Providers
	registryOpts := []provider.RegistryOption{
		provider.WithAdapterOptions(provider.WithTimeout(cfg.Providers.Timeout())),
	}
	for _, kind := range []domain.ProviderKind{domain.KindAzureOpenAI, domain.KindOpenAI, domain.KindGemini} {
		if u := cfg.BaseURL(kind); u != "" {
			registryOpts = append(registryOpts, provider.WithKindOptions(kind, provider.WithBaseURL(u)))
		}
	}
	app.registry = provider.NewRegistry(registryOpts...)

	// Compiler
	app.compiler = compiler.New(compiler.Config{
		GHDLPath:         cfg.Compiler.GHDLPath,
		IverilogPath:     cfg.Compiler.IverilogPath,
		WorkRoot:         cfg.Compiler.WorkDirectory,
		Timeout:          cfg.Compiler.Timeout(),
		MaxConcurrent:    int64(cfg.Compiler.MaxConcurrent),
		VHDLFlags:        cfg.Compiler.VHDLFlags,
		VerilogFlags:     cfg.Compiler.VerilogFlags,
		ArtifactPatterns: cfg.Compiler.ArtifactPatterns,
	}, compiler.WithLogger(logger))

	exp := exporter.New(
		exporter.WithExtension(cfg.Export.ProjectExtension),
		exporter.WithReadme(cfg.Export.IncludeReadme),
		exporter.WithLogger(logger),
	)

	// Metrics
	var (
		metrics        *pipeline.Metrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = pipeline.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// Events
	var publisher events.Publisher = events.Noop{}
	if cfg.Events.Enabled {
		nats, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			logger.Warn("event publishing disabled", slog.String("error", err.Error()))
		} else {
			publisher = nats
		}
	}
	app.closers = append(app.closers, publisher.Close)

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithAnalyzer(analyzer.New(analyzer.WithLogger(logger))),
		pipeline.WithEvents(publisher),
		pipeline.WithMetrics(metrics),
		pipeline.WithRetry(cfg.Providers.MaxRetries, cfg.Providers.RetryDelay()),
		pipeline.WithConnectionCheck(cfg.Providers.ConnectionCheck),
		pipeline.WithMaxPromptLength(cfg.Security.MaxPromptLength),
	}

	// Server-side credential pools
	var pooledKinds []domain.ProviderKind
	for _, kind := range app.registry.Kinds() {
		keys := cfg.CredentialKeys(kind)
		if len(keys) == 0 {
			continue
		}
		ring := domain.NewCredentialRing(keys, cfg.Providers.CredentialCooldown())
		pipelineOpts = append(pipelineOpts, pipeline.WithCredentials(kind, ring))
		app.pooledKeys += ring.Total()
		pooledKinds = append(pooledKinds, kind)
		logger.Info("credential pool loaded", slog.String("provider", string(kind)), slog.Int("keys", ring.Total()))
	}

	handlerOpts := []handler.Option{
		handler.WithLogger(logger),
		handler.WithToolchains(app.compiler),
		handler.WithEvents(publisher),
		handler.WithMaxPromptLength(cfg.Security.MaxPromptLength),
		handler.WithDefaultKind(cfg.Providers.DefaultKind),
		handler.WithPooledKinds(pooledKinds...),
		handler.WithVersion(version),
		handler.WithConsole(gin.Mode() != gin.TestMode),
		handler.WithBreakers(handler.NewBreakerSet(
			app.registry.Kinds(),
			cfg.Providers.CircuitFailureThreshold,
			cfg.Providers.CircuitTimeout(),
			logger,
		)),
		handler.WithHealthCheck("events", publisher.Ping),
	}

	// Archive retention
	if t := cfg.Export.Storage.Type; t != "" && t != "none" {
		target, err := storage.NewTarget(storage.Config{
			Name:           "archives",
			Type:           t,
			Bucket:         cfg.Export.Storage.Bucket,
			Region:         cfg.Export.Storage.Region,
			Endpoint:       cfg.Export.Storage.Endpoint,
			UsePathStyle:   cfg.Export.Storage.UsePathStyle,
			Prefix:         cfg.Export.Storage.Prefix,
			StorageAccount: cfg.Export.Storage.StorageAccount,
			Container:      cfg.Export.Storage.Container,
			MaxRetries:     cfg.Export.Storage.MaxRetries,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("archive storage: %w", err)
		}
		archives := storage.NewArchiveStore(target, cfg.Export.ProjectExtension, logger)
		pipelineOpts = append(pipelineOpts, pipeline.WithArchiveSaver(archives))
		handlerOpts = append(handlerOpts,
			handler.WithArchives(archives),
			handler.WithHealthCheck("storage", target.Ping),
		)
		logger.Info("archive retention enabled", slog.String("target", target.Name()), slog.String("type", t))
	}

	// Result cache
	switch cfg.Cache.Backend {
	case "memory":
		cache := handler.NewMemoryCache(handler.WithCacheTTL(cfg.Cache.TTL()), handler.WithCacheLogger(logger))
		app.closers = append(app.closers, func() error { cache.Close(); return nil })
		handlerOpts = append(handlerOpts, handler.WithCache(cache), handler.WithHealthCheck("cache", cache.Ping))
	case "redis":
		cache, err := handler.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.TTL(), logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		app.closers = append(app.closers, cache.Close)
		handlerOpts = append(handlerOpts, handler.WithCache(cache), handler.WithHealthCheck("cache", cache.Ping))
	}

	orchestrator := pipeline.New(app.registry, app.compiler, exp, pipelineOpts...)

	if err := handler.RegisterValidators(cfg.Security.MaxPromptLength); err != nil {
		app.Close()
		return nil, fmt.Errorf("registering validators: %w", err)
	}

	routerOpts := handler.RouterOptions{
		Logger:       logger,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Metrics:      metricsHandler,
		MetricsPath:  cfg.Metrics.Path,
	}
	if cfg.Security.APIKeyRequired {
		routerOpts.APIKeys = cfg.Security.APIKeys
		routerOpts.APIKeyHeader = cfg.Security.APIKeyHeader
	}
	if cfg.Security.RateLimitEnabled {
		routerOpts.RateLimiter = handler.NewRateLimiter(cfg.Security.RateLimitPerMinute)
	}

	app.router = handler.NewRouter(handler.New(orchestrator, app.registry, handlerOpts...), routerOpts)
	return app, nil
}

// Close releases the event connection and caches. Errors are logged.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}
