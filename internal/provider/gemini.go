package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

const (
	// DefaultGeminiBaseURL is the default Gemini API endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultGeminiModel is used when the config names no model.
	DefaultGeminiModel = "gemini-1.5-flash"
)

// GeminiAdapter implements Provider for the Google Gemini generateContent API.
type GeminiAdapter struct {
	cfg     domain.ProviderConfig
	baseURL string
	http    transport
}

// NewGeminiAdapter creates an adapter for cfg.
func NewGeminiAdapter(cfg domain.ProviderConfig, opts ...Option) *GeminiAdapter {
	o := buildOptions(DefaultGeminiBaseURL, opts)
	if cfg.Endpoint != "" && o.baseURL == DefaultGeminiBaseURL {
		o.baseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	return &GeminiAdapter{
		cfg:     cfg,
		baseURL: o.baseURL,
		http:    transport{kind: domain.KindGemini, client: o.httpClient},
	}
}

// Kind returns domain.KindGemini.
func (g *GeminiAdapter) Kind() domain.ProviderKind { return domain.KindGemini }

func (g *GeminiAdapter) model() string {
	if g.cfg.Model != "" {
		return g.cfg.Model
	}
	return DefaultGeminiModel
}

// ValidateConfig requires a key and a gemini- model name.
func (g *GeminiAdapter) ValidateConfig() error {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return &ConfigError{Provider: domain.KindGemini, Field: "api_key", Reason: "is required"}
	}
	if !strings.HasPrefix(g.model(), "gemini-") {
		return &ConfigError{Provider: domain.KindGemini, Field: "model_name", Reason: "must start with 'gemini-'"}
	}
	return nil
}

// headers carries the key in x-goog-api-key so it never appears in URLs or logs.
func (g *GeminiAdapter) headers() http.Header {
	h := http.Header{}
	h.Set("x-goog-api-key", g.cfg.APIKey)
	return h
}

// Generate calls models/{model}:generateContent.
func (g *GeminiAdapter) Generate(ctx context.Context, prompt string, tuning domain.Tuning) (domain.RawGenerationResult, error) {
	if err := g.ValidateConfig(); err != nil {
		return domain.RawGenerationResult{}, err
	}

	req := g.buildRequest(prompt, tuning)
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model()))

	start := time.Now()
	var resp GeminiResponse
	if err := g.http.do(ctx, http.MethodPost, endpoint, g.headers(), req, &resp); err != nil {
		return domain.RawGenerationResult{}, err
	}
	return g.toResult(prompt, resp, time.Since(start))
}

// TestConnection lists models, which costs no generation quota.
func (g *GeminiAdapter) TestConnection(ctx context.Context) (ConnectionResult, error) {
	if err := g.ValidateConfig(); err != nil {
		return ConnectionResult{}, err
	}
	start := time.Now()
	var list GeminiModelList
	if err := g.http.do(ctx, http.MethodGet, g.baseURL+"/models", g.headers(), nil, &list); err != nil {
		return ConnectionResult{}, err
	}
	return ConnectionResult{
		Provider: domain.KindGemini,
		Model:    g.model(),
		Models:   len(list.Models),
		Latency:  time.Since(start),
		Message:  "connection successful",
	}, nil
}

// Describe returns Gemini metadata.
func (g *GeminiAdapter) Describe() Description {
	return Description{
		Name:             "Google Gemini",
		Kind:             domain.KindGemini,
		Description:      "Google Gemini generateContent API provider for HDL code generation",
		SupportedModels:  []string{"gemini-1.5-pro", "gemini-1.5-flash", "gemini-1.5-flash-8b", "gemini-2.0-flash"},
		RequiredFields:   []string{"api_key"},
		OptionalFields:   []string{"model_name", "endpoint", "temperature", "max_tokens", "top_p"},
		DefaultModel:     DefaultGeminiModel,
		DocumentationURL: "https://ai.google.dev/api/generate-content",
	}
}

// buildRequest maps the system prompt to systemInstruction and tuning to generationConfig.
func (g *GeminiAdapter) buildRequest(prompt string, tuning domain.Tuning) GeminiRequest {
	temp := tuning.TemperatureOrDefault()
	maxTokens := tuning.MaxTokensOrDefault()
	return GeminiRequest{
		Contents: []GeminiContent{
			{Role: "user", Parts: []GeminiPart{{Text: prompt}}},
		},
		SystemInstruction: &GeminiContent{
			Parts: []GeminiPart{{Text: SystemPrompt}},
		},
		GenerationConfig: GeminiGenerationConfig{
			Temperature:     &temp,
			MaxOutputTokens: &maxTokens,
			TopP:            tuning.TopP,
		},
	}
}

// toResult joins the first candidate's parts into the raw text.
func (g *GeminiAdapter) toResult(prompt string, resp GeminiResponse, elapsed time.Duration) (domain.RawGenerationResult, error) {
	if len(resp.Candidates) == 0 {
		msg := "response contained no candidates"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			msg = "prompt blocked: " + resp.PromptFeedback.BlockReason
		}
		return domain.RawGenerationResult{}, &ResponseError{Provider: domain.KindGemini, Message: msg}
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return domain.RawGenerationResult{}, &ResponseError{
			Provider: domain.KindGemini,
			Message:  "candidate contained no text (finish reason " + cand.FinishReason + ")",
		}
	}

	usage := estimateUsage(prompt, text)
	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		usage = &domain.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return domain.RawGenerationResult{
		Provider:     domain.KindGemini,
		Model:        g.model(),
		Text:         text,
		FinishReason: mapFinishReason(cand.FinishReason),
		Elapsed:      elapsed,
		Usage:        usage,
		RequestID:    resp.ResponseID,
	}, nil
}

// mapFinishReason converts Gemini finish reasons to chat completions terms.
func mapFinishReason(reason string) string {
	switch reason {
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return "content_filter"
	default:
		return "stop"
	}
}

// ============================================================================
// Gemini API Types
// ============================================================================

// GeminiRequest represents a Gemini generateContent request.
type GeminiRequest struct {
	Contents          []GeminiContent        `json:"contents"`
	SystemInstruction *GeminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  GeminiGenerationConfig `json:"generationConfig"`
}

// GeminiContent represents a content block in Gemini format.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents a part of a content block.
type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

// GeminiGenerationConfig contains generation parameters.
type GeminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// GeminiResponse represents a Gemini generateContent response.
type GeminiResponse struct {
	Candidates     []GeminiCandidate     `json:"candidates"`
	UsageMetadata  *GeminiUsageMetadata  `json:"usageMetadata,omitempty"`
	PromptFeedback *GeminiPromptFeedback `json:"promptFeedback,omitempty"`
	ResponseID     string                `json:"responseId,omitempty"`
}

// GeminiCandidate represents a single generated candidate.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index"`
}

// GeminiPromptFeedback explains why a prompt produced no candidates.
type GeminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// GeminiUsageMetadata contains token usage information.
type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GeminiModelList is the models.list response.
type GeminiModelList struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
