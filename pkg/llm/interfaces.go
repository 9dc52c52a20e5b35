// Package llm provides the language model clients used for plan generation
// and narrative insight generation.
package llm

import (
	"context"
)

// LLMClient is the capability contract the pipeline depends on. The engine
// never trusts the model's output for correctness; every generated query is
// execution-validated downstream. Implementations must be safe for concurrent
// use across roles.
type LLMClient interface {
	// GenerateResponse generates a free-text completion.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GenerateJSON generates a completion constrained to a single JSON
	// document and returns the raw JSON text. contextJSON is appended to the
	// prompt as grounding data and may be empty.
	GenerateJSON(ctx context.Context, prompt string, contextJSON string) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Ensure implementations satisfy LLMClient at compile time.
var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
)
