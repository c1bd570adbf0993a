// Package handler provides the HTTP surface of the generation service.
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noejunior792/hdl-ai-proteus/internal/pipeline"
	"github.com/noejunior792/hdl-ai-proteus/internal/security"
)

// Context keys set by middleware and handlers.
const (
	ContextRequestID = "request_id"
	ContextCircuit   = "circuit"
	ContextProvider  = "provider"
	ContextCacheHit  = "cache_hit"

	HeaderRequestID = "X-Request-ID"
)

// CORSMiddleware answers preflight requests and sets CORS headers for the
// allowed origins. "*" allows any origin.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowAny := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAny:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-HDL-Language, X-Design-Unit, X-Provider-Used, X-Compilation-Success, X-Compilation-State, X-Archive-Checksum, X-Archive-ID, X-Cache, X-Generation-Metadata")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware propagates a caller-supplied X-Request-ID or assigns one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// LoggingMiddleware logs one structured line per request.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("request_id", c.GetString(ContextRequestID)),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
		}
		if circuit := c.GetString(ContextCircuit); circuit != "" {
			attrs = append(attrs, slog.String("circuit", circuit))
		}
		if kind := c.GetString(ContextProvider); kind != "" {
			attrs = append(attrs, slog.String("provider", kind))
		}
		if c.GetBool(ContextCacheHit) {
			attrs = append(attrs, slog.Bool("cache_hit", true))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("request failed", attrs...)
		case status >= 400:
			logger.Warn("client error", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}

// RecoveryMiddleware recovers from panics and answers with INTERNAL_ERROR.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					slog.Any("error", err),
					slog.String("path", c.Request.URL.Path),
					slog.String("request_id", c.GetString(ContextRequestID)),
				)
				RespondError(c, http.StatusInternalServerError, APIError{
					Code:    pipeline.CodeInternal,
					Message: "internal server error",
				})
			}
		}()

		c.Next()
	}
}

// BodyLimitMiddleware caps request bodies at maxBytes.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			RespondError(c, http.StatusRequestEntityTooLarge, APIError{
				Code:    ErrCodeTooLarge,
				Message: "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// APIKeyAuthMiddleware requires one of keys in header (or a Bearer token).
func APIKeyAuthMiddleware(header string, keys []string) gin.HandlerFunc {
	if header == "" {
		header = "X-API-Key"
	}
	return func(c *gin.Context) {
		candidate := c.GetHeader(header)
		if candidate == "" {
			candidate = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if !security.KeyMatches(candidate, keys) {
			RespondError(c, http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "missing or invalid API key",
				Hint:    "send a valid key in the " + header + " header",
			})
			return
		}
		c.Next()
	}
}
