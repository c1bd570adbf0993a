package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

const (
	// DefaultOpenAIBaseURL is the public OpenAI API endpoint.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is used when the config names no model.
	DefaultOpenAIModel = "gpt-4o"
)

// OpenAIAdapter implements Provider for the OpenAI Chat Completions API.
type OpenAIAdapter struct {
	cfg     domain.ProviderConfig
	baseURL string
	http    transport
}

// NewOpenAIAdapter creates an adapter for cfg.
func NewOpenAIAdapter(cfg domain.ProviderConfig, opts ...Option) *OpenAIAdapter {
	o := buildOptions(DefaultOpenAIBaseURL, opts)
	if cfg.Endpoint != "" && o.baseURL == DefaultOpenAIBaseURL {
		o.baseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	return &OpenAIAdapter{
		cfg:     cfg,
		baseURL: o.baseURL,
		http:    transport{kind: domain.KindOpenAI, client: o.httpClient},
	}
}

// Kind returns domain.KindOpenAI.
func (a *OpenAIAdapter) Kind() domain.ProviderKind { return domain.KindOpenAI }

func (a *OpenAIAdapter) model() string {
	if a.cfg.Model != "" {
		return a.cfg.Model
	}
	return DefaultOpenAIModel
}

// ValidateConfig requires an sk- prefixed key.
func (a *OpenAIAdapter) ValidateConfig() error {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return &ConfigError{Provider: domain.KindOpenAI, Field: "api_key", Reason: "is required"}
	}
	if !strings.HasPrefix(a.cfg.APIKey, "sk-") {
		return &ConfigError{Provider: domain.KindOpenAI, Field: "api_key", Reason: "must start with 'sk-'"}
	}
	if a.cfg.Endpoint != "" && !strings.HasPrefix(a.cfg.Endpoint, "https://") && !strings.HasPrefix(a.cfg.Endpoint, "http://") {
		return &ConfigError{Provider: domain.KindOpenAI, Field: "endpoint", Reason: "must be an http(s) URL"}
	}
	return nil
}

func (a *OpenAIAdapter) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+a.cfg.APIKey)
	if a.cfg.Organization != "" {
		h.Set("OpenAI-Organization", a.cfg.Organization)
	}
	return h
}

// Generate calls POST /chat/completions.
func (a *OpenAIAdapter) Generate(ctx context.Context, prompt string, tuning domain.Tuning) (domain.RawGenerationResult, error) {
	if err := a.ValidateConfig(); err != nil {
		return domain.RawGenerationResult{}, err
	}

	temp := tuning.TemperatureOrDefault()
	maxTokens := tuning.MaxTokensOrDefault()
	req := ChatRequest{
		Model:       a.model(),
		Messages:    chatMessages(prompt),
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		TopP:        tuning.TopP,
	}

	start := time.Now()
	var resp ChatResponse
	if err := a.http.do(ctx, http.MethodPost, a.baseURL+"/chat/completions", a.headers(), req, &resp); err != nil {
		return domain.RawGenerationResult{}, err
	}
	return chatResult(domain.KindOpenAI, a.model(), prompt, resp, time.Since(start))
}

// TestConnection lists models, which costs no generation quota.
func (a *OpenAIAdapter) TestConnection(ctx context.Context) (ConnectionResult, error) {
	if err := a.ValidateConfig(); err != nil {
		return ConnectionResult{}, err
	}
	start := time.Now()
	var list ModelList
	if err := a.http.do(ctx, http.MethodGet, a.baseURL+"/models", a.headers(), nil, &list); err != nil {
		return ConnectionResult{}, err
	}
	return ConnectionResult{
		Provider: domain.KindOpenAI,
		Model:    a.model(),
		Models:   len(list.Data),
		Latency:  time.Since(start),
		Message:  "connection successful",
	}, nil
}

// Describe returns OpenAI metadata.
func (a *OpenAIAdapter) Describe() Description {
	return Description{
		Name:             "OpenAI",
		Kind:             domain.KindOpenAI,
		Description:      "OpenAI Chat Completions API provider for HDL code generation",
		SupportedModels:  []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"},
		RequiredFields:   []string{"api_key"},
		OptionalFields:   []string{"model_name", "organization", "endpoint", "temperature", "max_tokens", "top_p"},
		DefaultModel:     DefaultOpenAIModel,
		DocumentationURL: "https://platform.openai.com/docs/api-reference/chat",
	}
}

// chatResult converts a chat completions response into a RawGenerationResult.
func chatResult(kind domain.ProviderKind, model, prompt string, resp ChatResponse, elapsed time.Duration) (domain.RawGenerationResult, error) {
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return domain.RawGenerationResult{}, &ResponseError{Provider: kind, Message: "response contained no generated text"}
	}
	text := resp.Choices[0].Message.Content

	if resp.Model != "" {
		model = resp.Model
	}

	usage := estimateUsage(prompt, text)
	if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
		usage = &domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return domain.RawGenerationResult{
		Provider:     kind,
		Model:        model,
		Text:         text,
		FinishReason: resp.Choices[0].FinishReason,
		Elapsed:      elapsed,
		Usage:        usage,
		RequestID:    resp.ID,
	}, nil
}
