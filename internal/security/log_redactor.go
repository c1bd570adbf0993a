// Package security keeps provider credentials out of log output and
// provides constant-time comparison of inbound API keys.
package security

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces every secret found in log output.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match the credential formats of the supported backends.
var sensitivePatterns = []*regexp.Regexp{
	// OpenAI keys, including project keys: sk-..., sk-proj-...
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	// Google AI keys: AIza...
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{30,}`),
	// Azure OpenAI keys are 32 hex characters.
	regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`),
	// Authorization headers.
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]{16,}`),
	// Header dumps: api-key: ..., x-goog-api-key: ...
	regexp.MustCompile(`(?i)(?:x-goog-)?api-key["']?\s*[:=]\s*["']?[a-zA-Z0-9_-]{16,}`),
	// Query parameters: key=..., api_key=...
	regexp.MustCompile(`(?i)\b(?:api_)?key=[a-zA-Z0-9_-]{16,}`),
}

// Redact replaces every credential-shaped substring of s.
func Redact(s string) string {
	result := s
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// MaskKey shows only the last four characters of key, for diagnostics.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

// KeyMatches reports whether candidate equals one of the allowed keys,
// comparing in constant time.
func KeyMatches(candidate string, allowed []string) bool {
	if candidate == "" {
		return false
	}
	match := 0
	for _, k := range allowed {
		match |= subtle.ConstantTimeCompare([]byte(candidate), []byte(k))
	}
	return match == 1
}

// RedactedHandler wraps an slog.Handler and redacts sensitive data from log records.
type RedactedHandler struct {
	inner slog.Handler
}

// NewRedactedHandler creates a new handler that wraps an existing handler
// and redacts sensitive data from all log output.
func NewRedactedHandler(inner slog.Handler) *RedactedHandler {
	return &RedactedHandler{inner: inner}
}

// Enabled reports whether the handler handles records at the given level.
func (h *RedactedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle processes a log record, redacting sensitive data.
func (h *RedactedHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *RedactedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactedHandler{inner: h.inner.WithAttrs(redacted)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactedHandler) WithGroup(name string) slog.Handler {
	return &RedactedHandler{inner: h.inner.WithGroup(name)}
}

// redactAttr redacts sensitive data from a single attribute, descending
// into groups.
func redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(strings.ToLower(a.Key)) {
		return slog.String(a.Key, RedactedPlaceholder)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		redacted := make([]any, len(group))
		for i, g := range group {
			redacted[i] = redactAttr(g)
		}
		return slog.Group(a.Key, redacted...)
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, Redact(x.Error()))
		case []string:
			redacted := make([]string, len(x))
			for i, s := range x {
				redacted[i] = Redact(s)
			}
			return slog.Any(a.Key, redacted)
		}
	}
	return a
}

// sensitiveKeys are attribute names whose values are never logged.
var sensitiveKeys = []string{
	"authorization",
	"api_key",
	"apikey",
	"api-key",
	"secret",
	"password",
	"access_token",
	"bearer",
	"credential",
}

// isSensitiveKey checks if an attribute key is known to contain sensitive data.
func isSensitiveKey(key string) bool {
	if key == "key" {
		return true
	}
	for _, k := range sensitiveKeys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}
