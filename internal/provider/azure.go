package provider

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// DefaultAzureDeployment is used when neither deployment nor model is set.
const DefaultAzureDeployment = "gpt-4o"

var azureAPIVersionPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(-preview)?$`)

// AzureOpenAIAdapter implements Provider for Azure OpenAI deployments.
type AzureOpenAIAdapter struct {
	cfg      domain.ProviderConfig
	endpoint string
	http     transport
}

// NewAzureOpenAIAdapter creates an adapter for cfg. WithBaseURL replaces cfg.Endpoint.
func NewAzureOpenAIAdapter(cfg domain.ProviderConfig, opts ...Option) *AzureOpenAIAdapter {
	o := buildOptions(strings.TrimSuffix(cfg.Endpoint, "/"), opts)
	return &AzureOpenAIAdapter{
		cfg:      cfg,
		endpoint: o.baseURL,
		http:     transport{kind: domain.KindAzureOpenAI, client: o.httpClient},
	}
}

// Kind returns domain.KindAzureOpenAI.
func (a *AzureOpenAIAdapter) Kind() domain.ProviderKind { return domain.KindAzureOpenAI }

func (a *AzureOpenAIAdapter) deployment() string {
	switch {
	case a.cfg.Deployment != "":
		return a.cfg.Deployment
	case a.cfg.Model != "":
		return a.cfg.Model
	default:
		return DefaultAzureDeployment
	}
}

// ValidateConfig requires api_key, an https endpoint and a dated api_version.
func (a *AzureOpenAIAdapter) ValidateConfig() error {
	kind := domain.KindAzureOpenAI
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return &ConfigError{Provider: kind, Field: "api_key", Reason: "is required"}
	}
	if strings.TrimSpace(a.cfg.Endpoint) == "" {
		return &ConfigError{Provider: kind, Field: "endpoint", Reason: "is required"}
	}
	if !strings.HasPrefix(a.cfg.Endpoint, "https://") {
		return &ConfigError{Provider: kind, Field: "endpoint", Reason: "must start with 'https://'"}
	}
	if strings.TrimSpace(a.cfg.APIVersion) == "" {
		return &ConfigError{Provider: kind, Field: "api_version", Reason: "is required"}
	}
	if !azureAPIVersionPattern.MatchString(a.cfg.APIVersion) {
		return &ConfigError{Provider: kind, Field: "api_version", Reason: "must look like YYYY-MM-DD or YYYY-MM-DD-preview"}
	}
	return nil
}

func (a *AzureOpenAIAdapter) headers() http.Header {
	h := http.Header{}
	h.Set("api-key", a.cfg.APIKey)
	return h
}

func (a *AzureOpenAIAdapter) url(path string) string {
	return a.endpoint + path + "?api-version=" + url.QueryEscape(a.cfg.APIVersion)
}

// Generate calls the deployment's chat completions endpoint.
func (a *AzureOpenAIAdapter) Generate(ctx context.Context, prompt string, tuning domain.Tuning) (domain.RawGenerationResult, error) {
	if err := a.ValidateConfig(); err != nil {
		return domain.RawGenerationResult{}, err
	}

	temp := tuning.TemperatureOrDefault()
	maxTokens := tuning.MaxTokensOrDefault()
	req := ChatRequest{
		Messages:    chatMessages(prompt),
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		TopP:        tuning.TopP,
	}

	path := "/openai/deployments/" + url.PathEscape(a.deployment()) + "/chat/completions"
	start := time.Now()
	var resp ChatResponse
	if err := a.http.do(ctx, http.MethodPost, a.url(path), a.headers(), req, &resp); err != nil {
		return domain.RawGenerationResult{}, err
	}
	return chatResult(domain.KindAzureOpenAI, a.deployment(), prompt, resp, time.Since(start))
}

// TestConnection lists the models visible to the resource.
func (a *AzureOpenAIAdapter) TestConnection(ctx context.Context) (ConnectionResult, error) {
	if err := a.ValidateConfig(); err != nil {
		return ConnectionResult{}, err
	}
	start := time.Now()
	var list ModelList
	if err := a.http.do(ctx, http.MethodGet, a.url("/openai/models"), a.headers(), nil, &list); err != nil {
		return ConnectionResult{}, err
	}
	return ConnectionResult{
		Provider: domain.KindAzureOpenAI,
		Model:    a.deployment(),
		Models:   len(list.Data),
		Latency:  time.Since(start),
		Message:  "connection successful",
	}, nil
}

// Describe returns Azure OpenAI metadata.
func (a *AzureOpenAIAdapter) Describe() Description {
	return Description{
		Name:             "Azure OpenAI",
		Kind:             domain.KindAzureOpenAI,
		Description:      "Microsoft Azure OpenAI Service provider for HDL code generation",
		SupportedModels:  []string{"gpt-4", "gpt-4-32k", "gpt-4o", "gpt-4-turbo", "gpt-35-turbo", "gpt-35-turbo-16k"},
		RequiredFields:   []string{"api_key", "endpoint", "api_version"},
		OptionalFields:   []string{"deployment_name", "model_name", "temperature", "max_tokens", "top_p"},
		DefaultModel:     DefaultAzureDeployment,
		DocumentationURL: "https://learn.microsoft.com/azure/ai-services/openai/reference",
	}
}
