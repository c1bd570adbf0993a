package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/noejunior792/hdl-ai-proteus/internal/compiler"
	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
	"github.com/noejunior792/hdl-ai-proteus/internal/security"
)

// ServiceName is reported by /health and /api/info.
const ServiceName = "HDL AI Proteus"

// deepCheckTimeout bounds the whole /health/deep fan-out.
const deepCheckTimeout = 5 * time.Second

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HandleHealth reports liveness plus toolchain availability.
func (h *Handler) HandleHealth(c *gin.Context) {
	toolchains := []compiler.Toolchain{}
	if h.toolchains != nil {
		toolchains = h.toolchains.Availability()
	}
	resp := gin.H{
		"status":     "healthy",
		"service":    ServiceName,
		"version":    h.version,
		"providers":  h.registry.Kinds(),
		"toolchains": toolchains,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if h.breakers != nil {
		resp["circuit_breakers"] = h.breakers.States()
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDeepHealth checks every registered dependency in parallel and
// answers 503 when any of them fails.
func (h *Handler) HandleDeepHealth(c *gin.Context) {
	results := h.runChecks(c.Request.Context())

	status, code := "healthy", http.StatusOK
	for _, r := range results {
		if r.Status != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": results,
	})
}

func (h *Handler) runChecks(ctx context.Context) map[string]CheckResult {
	ctx, cancel := context.WithTimeout(ctx, deepCheckTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(h.checks))
	)
	var g errgroup.Group
	for name, check := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := check(ctx)
			r := CheckResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				r.Status = "failed"
				r.Error = security.Redact(err.Error())
			}
			mu.Lock()
			results[name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// HandleInfo describes the service and its endpoints.
func (h *Handler) HandleInfo(c *gin.Context) {
	kinds := h.registry.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	sort.Strings(names)

	c.JSON(http.StatusOK, gin.H{
		"service":             ServiceName,
		"version":             h.version,
		"description":         "Generates VHDL and Verilog from natural language, validates it with ghdl or iverilog and packages a Proteus project archive",
		"supported_languages": []domain.Dialect{domain.DialectVHDL, domain.DialectVerilog},
		"providers":           names,
		"default_provider":    h.defaultKind,
		"max_prompt_length":   h.maxPrompt,
		"endpoints": gin.H{
			"health":           "GET /health",
			"deep_health":      "GET /health/deep",
			"info":             "GET /api/info",
			"providers":        "GET /api/providers",
			"provider_config":  "GET /api/providers/:type/template",
			"test_provider":    "POST /test-provider",
			"generate":         "POST /generate",
			"archive_download": "GET /api/archives/:id",
			"archive_delete":   "DELETE /api/archives/:id",
		},
	})
}
