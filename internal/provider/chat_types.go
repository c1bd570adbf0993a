package provider

import "encoding/json"

// ============================================================================
// Chat Completions wire types (OpenAI and Azure OpenAI share this format)
// ============================================================================

// ChatRequest is a chat completions request body.
type ChatRequest struct {
	// Model is omitted for Azure, where the deployment in the URL selects it.
	Model string `json:"model,omitempty"`

	// Messages holds the system prompt and the user prompt.
	Messages []ChatMessage `json:"messages"`

	// Temperature controls sampling randomness (0-2).
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens caps the completion length.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// TopP is the nucleus sampling mass (0-1).
	TopP *float64 `json:"top_p,omitempty"`
}

// ChatMessage is a single conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is a chat completions response body.
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *ChatUsage   `json:"usage,omitempty"`
}

// ChatChoice is one generated alternative.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage holds token counters.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelList is returned by the model listing endpoints used for connection checks.
type ModelList struct {
	Object string      `json:"object,omitempty"`
	Data   []ModelInfo `json:"data"`
}

// ModelInfo is one listed model.
type ModelInfo struct {
	ID string `json:"id"`
}

// apiErrorBody matches the error envelope of all three backends.
// Code is a number for Gemini and a string for OpenAI, hence RawMessage.
type apiErrorBody struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Status  string          `json:"status"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}
