package domain

import "time"

// GenerationRequest is the input of one pipeline run.
type GenerationRequest struct {
	Prompt      string
	CircuitName string
	Provider    ProviderConfig
	Tuning      Tuning
}

// Usage holds token counters reported (or estimated) for one generation.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// RawGenerationResult is what a provider adapter returns. Immutable once built.
type RawGenerationResult struct {
	Provider ProviderKind
	Model    string
	Text     string
	// FinishReason is normalized to stop, length or content_filter.
	FinishReason string
	Elapsed      time.Duration
	Usage        *Usage
	RequestID    string
}
