package llm

import (
	"context"
)

// MockCompletionClient is a configurable mock for testing generation
// pipelines. Set the function field to control behavior in tests.
type MockCompletionClient struct {
	// CompleteFunc is called when Complete is invoked. If nil, returns an
	// empty result and nil error.
	CompleteFunc func(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// ProviderTag is returned by Provider. Defaults to "mock".
	ProviderTag string

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// CompleteCalls counts Complete invocations for verification.
	CompleteCalls int

	// Requests records every request passed to Complete.
	Requests []*CompletionRequest
}

// NewMockCompletionClient creates a new mock with sensible defaults.
func NewMockCompletionClient() *MockCompletionClient {
	return &MockCompletionClient{
		ProviderTag: "mock",
		ModelName:   "mock-model",
	}
}

// Complete implements CompletionClient.
func (m *MockCompletionClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	m.CompleteCalls++
	m.Requests = append(m.Requests, req)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResult{}, nil
}

// Provider implements CompletionClient.
func (m *MockCompletionClient) Provider() string { return m.ProviderTag }

// Model implements CompletionClient.
func (m *MockCompletionClient) Model() string { return m.ModelName }

// Ensure MockCompletionClient implements CompletionClient at compile time.
var _ CompletionClient = (*MockCompletionClient)(nil)
