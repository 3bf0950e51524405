// Package llm provides completion clients for SQL generation over
// OpenAI-compatible and Anthropic endpoints.
package llm

import (
	"context"
)

// CompletionRequest carries one generation prompt.
type CompletionRequest struct {
	System string
	Prompt string
	// Model overrides the client's default model when non-empty.
	Model string
	// Temperature of 0 keeps generation deterministic-ish; SQL generation
	// wants repeatability over creativity.
	Temperature float64
}

// CompletionResult is the raw model output plus usage stats.
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// CompletionClient is the interface over one completion provider.
// Use this interface for dependency injection to enable mocking in tests.
type CompletionClient interface {
	// Complete generates a completion for the request. Transport and API
	// failures are reported as *apperrors.GenerationError.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// Provider returns the provider tag ("openai", "anthropic").
	Provider() string

	// Model returns the default model name.
	Model() string
}
