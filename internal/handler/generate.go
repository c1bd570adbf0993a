package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
	"github.com/noejunior792/hdl-ai-proteus/internal/events"
	"github.com/noejunior792/hdl-ai-proteus/internal/pipeline"
	"github.com/noejunior792/hdl-ai-proteus/internal/ui"
)

// Response headers set on a generated archive.
const (
	HeaderHDLLanguage        = "X-HDL-Language"
	HeaderDesignUnit         = "X-Design-Unit"
	HeaderProviderUsed       = "X-Provider-Used"
	HeaderCompilationSuccess = "X-Compilation-Success"
	HeaderCompilationState   = "X-Compilation-State"
	HeaderArchiveChecksum    = "X-Archive-Checksum"
	HeaderArchiveID          = "X-Archive-ID"
	HeaderCache              = "X-Cache"
	HeaderMetadata           = "X-Generation-Metadata"
)

// HandleGenerate runs the pipeline for POST /generate and streams the archive.
func (h *Handler) HandleGenerate(c *gin.Context) {
	start := time.Now()

	var body GenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, bindingMessage(err, h.maxPrompt), "send prompt, circuit_name and provider_config as JSON")
		return
	}
	if body.ProviderConfig.Kind == "" {
		body.ProviderConfig.Kind = h.defaultKind
	}

	req := domain.GenerationRequest{
		Prompt:      body.Prompt,
		CircuitName: body.CircuitName,
		Provider:    body.ProviderConfig,
		Tuning:      body.GenerationParams,
	}
	if err := domain.ValidateTuning(req.Tuning); err != nil {
		respondPipelineError(c, err)
		return
	}

	kind, err := h.registry.Resolve(req.Provider.Kind)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	c.Set(ContextCircuit, req.CircuitName)
	c.Set(ContextProvider, string(kind))

	// Checked before the cache so an unusable config never gets an archive.
	if err := h.checkProvider(kind, req.Provider); err != nil {
		respondPipelineError(c, err)
		return
	}

	var breaker *CircuitBreaker
	if h.breakers != nil {
		breaker = h.breakers.For(kind)
	}
	if breaker != nil && !breaker.Allow() {
		RespondError(c, http.StatusServiceUnavailable, APIError{
			Code:         ErrCodeCircuitOpen,
			Message:      string(kind) + " is failing repeatedly; requests are paused",
			Hint:         "retry after the indicated delay or choose another provider",
			RetryAfterMS: breaker.RetryAfter().Milliseconds(),
		})
		return
	}

	key := CacheKey(req, kind)
	if h.cache != nil {
		if cached, ok := h.cache.Get(c.Request.Context(), key); ok {
			c.Set(ContextCacheHit, true)
			h.publishCacheHit(c.Request.Context(), c.GetString(ContextRequestID), kind, cached)
			if h.console {
				ui.PrintCacheHit(shortKey(key), time.Since(start))
			}
			h.writeArchive(c, cached.FileName, cached.Archive, cached.Metadata, "HIT")
			return
		}
	}

	ctx := pipeline.WithRequestID(c.Request.Context(), c.GetString(ContextRequestID))
	res, err := h.pipeline.Run(ctx, req)
	if breaker != nil {
		if err == nil {
			breaker.RecordSuccess()
		} else if upstreamFailure(err) {
			breaker.RecordFailure()
		}
	}
	if err != nil {
		h.logger.Warn("generation failed",
			slog.String("request_id", c.GetString(ContextRequestID)),
			slog.String("circuit", req.CircuitName),
			slog.String("provider", string(kind)),
			slog.String("code", pipeline.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
		respondPipelineError(c, err)
		return
	}

	if h.cache != nil {
		h.cache.Set(c.Request.Context(), key, &CachedResult{
			FileName: res.Archive.FileName,
			Archive:  res.Archive.Data,
			Metadata: res.Metadata,
		})
	}
	if h.console {
		ui.PrintGeneration(req.CircuitName, string(res.Metadata.HDLLanguage), string(res.Metadata.CompilationState), time.Since(start))
	}
	h.writeArchive(c, res.Archive.FileName, res.Archive.Data, res.Metadata, "MISS")
}

// pooledKeyStandIn passes every kind's key format check. It is only used to
// validate the rest of a config that will draw a pooled key, and is never sent.
const pooledKeyStandIn = "sk-pooled-credential"

// checkProvider validates cfg the way the adapter will. An empty api_key is
// accepted only when the server holds a credential pool for kind.
func (h *Handler) checkProvider(kind domain.ProviderKind, cfg domain.ProviderConfig) error {
	if cfg.APIKey == "" && h.pooled[kind] {
		cfg.APIKey = pooledKeyStandIn
	}
	p, err := h.registry.New(cfg)
	if err != nil {
		return err
	}
	return p.ValidateConfig()
}

// writeArchive sends the zip with the metadata headers.
func (h *Handler) writeArchive(c *gin.Context, fileName string, data []byte, meta domain.ResultMetadata, cache string) {
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Header(HeaderHDLLanguage, string(meta.HDLLanguage))
	c.Header(HeaderDesignUnit, meta.DesignUnit)
	c.Header(HeaderProviderUsed, meta.ProviderUsed)
	c.Header(HeaderCompilationSuccess, strconv.FormatBool(meta.CompilationSuccess))
	c.Header(HeaderCompilationState, string(meta.CompilationState))
	c.Header(HeaderArchiveChecksum, meta.Checksum)
	if meta.ArchiveID != "" {
		c.Header(HeaderArchiveID, meta.ArchiveID)
	}
	c.Header(HeaderCache, cache)
	if b, err := json.Marshal(meta); err == nil {
		c.Header(HeaderMetadata, string(b))
	}
	c.Data(http.StatusOK, "application/zip", data)
}

func (h *Handler) publishCacheHit(ctx context.Context, requestID string, kind domain.ProviderKind, r *CachedResult) {
	ev := events.GenerationEvent{
		RequestID:        requestID,
		Circuit:          r.Metadata.CircuitName,
		Provider:         string(kind),
		Model:            r.Metadata.ModelUsed,
		Dialect:          string(r.Metadata.HDLLanguage),
		CompilationState: string(r.Metadata.CompilationState),
		Success:          true,
		Cached:           true,
		Timestamp:        time.Now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.events.Publish(pctx, ev); err != nil {
		h.logger.Warn("publish cache hit event", slog.String("error", err.Error()))
	}
}

// upstreamFailure reports whether err says the backend itself is unhealthy.
// Caller mistakes and analysis failures leave the breaker alone.
func upstreamFailure(err error) bool {
	switch pipeline.ErrorCode(err) {
	case pipeline.CodeProviderNetwork, pipeline.CodeProviderQuota, pipeline.CodeProviderResponse:
		return true
	}
	return false
}

// HandleTestProvider validates a provider config and performs a
// connection round-trip for POST /test-provider.
func (h *Handler) HandleTestProvider(c *gin.Context) {
	var body TestProviderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid JSON body: "+err.Error(), "send provider_config as JSON")
		return
	}
	cfg := body.ProviderConfig
	if cfg.Kind == "" {
		cfg.Kind = h.defaultKind
	}

	p, err := h.registry.New(cfg)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	c.Set(ContextProvider, string(p.Kind()))
	if err := p.ValidateConfig(); err != nil {
		respondPipelineError(c, err)
		return
	}

	res, err := p.TestConnection(c.Request.Context())
	if err != nil {
		h.logger.Info("provider connection test failed",
			slog.String("provider", string(p.Kind())),
			slog.String("error", err.Error()),
		)
		respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"provider":       res.Provider,
		"model":          res.Model,
		"message":        res.Message,
		"latency_ms":     res.Latency.Milliseconds(),
		"models_visible": res.Models,
	})
}
