// Package domain contains the request-scoped entities of the generation
// pipeline. These structs are framework-agnostic and never persisted.
package domain

import "strings"

// ProviderKind identifies one of the supported AI backends.
type ProviderKind string

const (
	KindAzureOpenAI ProviderKind = "azure_openai"
	KindGemini      ProviderKind = "gemini"
	KindOpenAI      ProviderKind = "openai"
)

// Default tuning values applied when the caller does not supply any.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// ProviderConfig identifies which backend to use and how to reach it.
// It is built per request from caller input and discarded afterwards.
type ProviderConfig struct {
	// Kind is the backend identifier as supplied by the caller (aliases allowed).
	Kind string `json:"provider_type" yaml:"provider_type"`

	// APIKey is the secret credential. Never logged, never exported.
	APIKey string `json:"api_key,omitempty" yaml:"api_key"`

	// Endpoint is the service base URL (required for Azure OpenAI).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// APIVersion is the dated API version string (Azure OpenAI).
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`

	// Model is the model identifier.
	Model string `json:"model_name,omitempty" yaml:"model_name,omitempty"`

	// Deployment is the Azure deployment name; defaults to Model.
	Deployment string `json:"deployment_name,omitempty" yaml:"deployment_name,omitempty"`

	// Organization is the OpenAI organization or tenant identifier.
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
}

// NormalizedKind returns the lower-cased, trimmed kind string.
func (c ProviderConfig) NormalizedKind() string {
	return strings.ToLower(strings.TrimSpace(c.Kind))
}

// Redacted returns a copy safe for logging and metadata.
func (c ProviderConfig) Redacted() ProviderConfig {
	out := c
	if out.APIKey != "" {
		out.APIKey = "***"
	}
	return out
}

// Tuning holds optional generation parameters.
type Tuning struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// TemperatureOrDefault returns the sampling temperature to send.
func (t Tuning) TemperatureOrDefault() float64 {
	if t.Temperature != nil {
		return *t.Temperature
	}
	return DefaultTemperature
}

// MaxTokensOrDefault returns the output length cap to send.
func (t Tuning) MaxTokensOrDefault() int {
	if t.MaxTokens != nil {
		return *t.MaxTokens
	}
	return DefaultMaxTokens
}
