package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterOptions carries the HTTP-level settings of NewRouter.
type RouterOptions struct {
	Logger       *slog.Logger
	CORSOrigins  []string
	MaxBodyBytes int64

	// APIKeys, when non-empty, guards every route except health and metrics.
	APIKeys      []string
	APIKeyHeader string

	// RateLimiter, when set, limits every guarded route per client IP.
	RateLimiter *RateLimiter

	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
}

// NewRouter wires the middleware chain and every route onto a new engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = h.logger
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(CORSMiddleware(opts.CORSOrigins))
	router.Use(LoggingMiddleware(logger))

	router.GET("/health", h.HandleHealth)
	router.GET("/health/deep", h.HandleDeepHealth)
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(opts.Metrics))
	}

	api := router.Group("/")
	if len(opts.APIKeys) > 0 {
		api.Use(APIKeyAuthMiddleware(opts.APIKeyHeader, opts.APIKeys))
	}
	if opts.RateLimiter != nil {
		api.Use(RateLimitMiddleware(opts.RateLimiter))
	}
	if opts.MaxBodyBytes > 0 {
		api.Use(BodyLimitMiddleware(opts.MaxBodyBytes))
	}

	api.GET("/api/info", h.HandleInfo)
	api.GET("/api/providers", h.HandleProviders)
	api.GET("/api/providers/:type/template", h.HandleTemplate)
	api.GET("/api/archives/:id", h.HandleGetArchive)
	api.DELETE("/api/archives/:id", h.HandleDeleteArchive)
	api.POST("/test-provider", h.HandleTestProvider)
	api.POST("/generate", h.HandleGenerate)

	return router
}
