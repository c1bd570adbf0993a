package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

func azureConfig() domain.ProviderConfig {
	return domain.ProviderConfig{
		Kind:       "azure_openai",
		APIKey:     "0123456789abcdef0123456789abcdef",
		Endpoint:   "https://proteus.openai.azure.com",
		APIVersion: "2024-02-15-preview",
		Deployment: "hdl-gpt4",
	}
}

func TestAzureOpenAIAdapter_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/hdl-gpt4/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2024-02-15-preview" {
			t.Errorf("api-version = %q", got)
		}
		if got := r.Header.Get("api-key"); got != "0123456789abcdef0123456789abcdef" {
			t.Errorf("api-key header = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want empty", got)
		}

		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "" {
			t.Errorf("model = %q, want omitted", req.Model)
		}
		if req.MaxTokens == nil || *req.MaxTokens != 512 {
			t.Errorf("max_tokens = %v, want 512", req.MaxTokens)
		}

		w.Write([]byte(`{"id":"az-1","choices":[{"message":{"role":"assistant","content":"module counter(input clk); endmodule"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	a := NewAzureOpenAIAdapter(azureConfig(), WithBaseURL(server.URL))
	res, err := a.Generate(context.Background(), "Create a 4-bit counter", domain.Tuning{MaxTokens: ptrInt(512)})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if res.Model != "hdl-gpt4" {
		t.Errorf("Model = %s, want hdl-gpt4", res.Model)
	}
	if res.Provider != domain.KindAzureOpenAI {
		t.Errorf("Provider = %s, want azure_openai", res.Provider)
	}
}

func TestAzureOpenAIAdapter_Deployment(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.ProviderConfig
		want string
	}{
		{"deployment wins", domain.ProviderConfig{Deployment: "dep", Model: "gpt-4"}, "dep"},
		{"model fallback", domain.ProviderConfig{Model: "gpt-4"}, "gpt-4"},
		{"default", domain.ProviderConfig{}, DefaultAzureDeployment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewAzureOpenAIAdapter(tt.cfg).deployment(); got != tt.want {
				t.Errorf("deployment() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAzureOpenAIAdapter_TestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/models" {
			t.Errorf("path = %s, want /openai/models", r.URL.Path)
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"401","message":"Access denied due to invalid subscription key"}}`))
	}))
	defer server.Close()

	a := NewAzureOpenAIAdapter(azureConfig(), WithBaseURL(server.URL))
	_, err := a.TestConnection(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("TestConnection() error = %v, want AuthError", err)
	}
	if Hint(err) == "" {
		t.Error("Hint(err) is empty")
	}
}

func TestAzureOpenAIAdapter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ProviderConfig)
		field  string
	}{
		{"valid", func(*domain.ProviderConfig) {}, ""},
		{"dated version", func(c *domain.ProviderConfig) { c.APIVersion = "2024-02-01" }, ""},
		{"no key", func(c *domain.ProviderConfig) { c.APIKey = "" }, "api_key"},
		{"no endpoint", func(c *domain.ProviderConfig) { c.Endpoint = "" }, "endpoint"},
		{"plain http", func(c *domain.ProviderConfig) { c.Endpoint = "http://proteus.openai.azure.com" }, "endpoint"},
		{"no version", func(c *domain.ProviderConfig) { c.APIVersion = "" }, "api_version"},
		{"bad version", func(c *domain.ProviderConfig) { c.APIVersion = "v1" }, "api_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := azureConfig()
			tt.mutate(&cfg)
			err := NewAzureOpenAIAdapter(cfg).ValidateConfig()
			if tt.field == "" {
				if err != nil {
					t.Errorf("ValidateConfig() error = %v, want nil", err)
				}
				return
			}
			ce, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("ValidateConfig() error = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %s, want %s", ce.Field, tt.field)
			}
		})
	}
}
