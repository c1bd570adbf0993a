package provider

import (
	"strings"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// tokensPerWord approximates subword tokenization (1 word ≈ 1.3 tokens).
const tokensPerWord = 1.3

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(float64(words)*tokensPerWord + 0.5)
}

// estimateUsage fills in counters when the backend omitted them.
func estimateUsage(prompt, completion string) *domain.Usage {
	p := EstimateTokens(SystemPrompt) + EstimateTokens(prompt)
	c := EstimateTokens(completion)
	return &domain.Usage{
		PromptTokens:     p,
		CompletionTokens: c,
		TotalTokens:      p + c,
		Estimated:        true,
	}
}
