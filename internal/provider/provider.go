// Package provider normalizes heterogeneous AI text-generation backends
// behind one contract. Callers resolve an adapter through a Registry and
// never branch on the backend kind afterwards.
package provider

import (
	"context"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// Provider is implemented once per supported backend.
type Provider interface {
	// Kind returns the canonical backend identifier.
	Kind() domain.ProviderKind

	// Generate sends the prompt with the HDL system prompt and returns the raw text.
	// It validates the configuration first and performs no I/O when that fails.
	Generate(ctx context.Context, prompt string, tuning domain.Tuning) (domain.RawGenerationResult, error)

	// ValidateConfig checks the kind-specific required fields without network access.
	ValidateConfig() error

	// Describe returns static metadata about the backend.
	Describe() Description

	// TestConnection performs a minimal round-trip (model listing) that does
	// not consume generation quota.
	TestConnection(ctx context.Context) (ConnectionResult, error)
}

// Description is the static metadata of a backend.
type Description struct {
	Name             string              `json:"provider_name" yaml:"provider_name"`
	Kind             domain.ProviderKind `json:"provider_type" yaml:"provider_type"`
	Aliases          []string            `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Description      string              `json:"description" yaml:"description"`
	SupportedModels  []string            `json:"supported_models" yaml:"supported_models"`
	RequiredFields   []string            `json:"required_config" yaml:"required_config"`
	OptionalFields   []string            `json:"optional_config" yaml:"optional_config"`
	DefaultModel     string              `json:"default_model" yaml:"default_model"`
	DocumentationURL string              `json:"documentation_url" yaml:"documentation_url"`
}

// ConnectionResult reports a successful TestConnection.
type ConnectionResult struct {
	Provider domain.ProviderKind `json:"provider"`
	Model    string              `json:"model,omitempty"`
	Models   int                 `json:"models_visible"`
	Latency  time.Duration       `json:"-"`
	Message  string              `json:"message"`
}
