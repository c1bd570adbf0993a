package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Request bounds.
const (
	MaxCircuitNameLength = 100
	MinPromptLength      = 10
	MaxPromptLength      = 10000
	MaxTemperature       = 2.0
	MaxOutputTokens      = 8000
)

var circuitNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// suspiciousPromptPatterns reject script-injection payloads smuggled in prompts.
var suspiciousPromptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)onload\s*=`),
	regexp.MustCompile(`(?i)onerror\s*=`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
}

// reservedNames collide with VHDL/Verilog keywords and would break the design unit.
var reservedNames = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "xor": {}, "nand": {}, "nor": {}, "xnor": {},
	"begin": {}, "end": {}, "if": {}, "then": {}, "else": {}, "case": {}, "when": {},
	"process": {}, "signal": {}, "variable": {}, "entity": {}, "architecture": {},
	"library": {}, "use": {}, "package": {}, "component": {}, "port": {}, "map": {},
	"module": {}, "endmodule": {}, "always": {}, "initial": {}, "wire": {}, "reg": {},
	"input": {}, "output": {}, "inout": {}, "parameter": {}, "assign": {},
}

// InvalidRequestError reports a GenerationRequest field that breaks a rule.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateCircuitName checks identifier shape, length and reserved words.
func ValidateCircuitName(name string) error {
	if name == "" {
		return &InvalidRequestError{Field: "circuit_name", Reason: "must not be empty"}
	}
	if len(name) > MaxCircuitNameLength {
		return &InvalidRequestError{
			Field:  "circuit_name",
			Reason: fmt.Sprintf("too long (maximum %d characters)", MaxCircuitNameLength),
		}
	}
	if !circuitNamePattern.MatchString(name) {
		return &InvalidRequestError{
			Field:  "circuit_name",
			Reason: "must start with a letter or underscore and contain only letters, digits and underscores",
		}
	}
	if _, reserved := reservedNames[strings.ToLower(name)]; reserved {
		return &InvalidRequestError{Field: "circuit_name", Reason: fmt.Sprintf("%q is a reserved HDL keyword", name)}
	}
	return nil
}

// ValidatePrompt checks the prompt length against maxLen (MaxPromptLength when <= 0)
// and rejects injection patterns.
func ValidatePrompt(prompt string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = MaxPromptLength
	}
	n := utf8.RuneCountInString(strings.TrimSpace(prompt))
	if n < MinPromptLength {
		return &InvalidRequestError{
			Field:  "prompt",
			Reason: fmt.Sprintf("too short (minimum %d characters)", MinPromptLength),
		}
	}
	if n > maxLen {
		return &InvalidRequestError{
			Field:  "prompt",
			Reason: fmt.Sprintf("too long (maximum %d characters)", maxLen),
		}
	}
	for _, p := range suspiciousPromptPatterns {
		if p.MatchString(prompt) {
			return &InvalidRequestError{Field: "prompt", Reason: "contains potentially harmful content"}
		}
	}
	return nil
}

// ValidateTuning checks the optional generation parameters.
func ValidateTuning(t Tuning) error {
	if t.Temperature != nil && (*t.Temperature < 0 || *t.Temperature > MaxTemperature) {
		return &InvalidRequestError{Field: "temperature", Reason: "must be between 0 and 2"}
	}
	if t.MaxTokens != nil && (*t.MaxTokens < 1 || *t.MaxTokens > MaxOutputTokens) {
		return &InvalidRequestError{Field: "max_tokens", Reason: fmt.Sprintf("must be between 1 and %d", MaxOutputTokens)}
	}
	if t.TopP != nil && (*t.TopP < 0 || *t.TopP > 1) {
		return &InvalidRequestError{Field: "top_p", Reason: "must be between 0 and 1"}
	}
	return nil
}

// Validate runs every request-level rule.
func (r GenerationRequest) Validate(maxPromptLen int) error {
	if err := ValidatePrompt(r.Prompt, maxPromptLen); err != nil {
		return err
	}
	if err := ValidateCircuitName(r.CircuitName); err != nil {
		return err
	}
	return ValidateTuning(r.Tuning)
}
