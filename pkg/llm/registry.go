package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/config"
)

// Registry resolves completion clients by provider tag. Clients are built
// once at startup from server configuration and reused across requests.
type Registry struct {
	clients         map[string]CompletionClient
	defaultProvider string
}

// NewRegistry builds clients for every configured provider. A provider with
// no model configured is skipped. At least one provider must be available.
func NewRegistry(cfg *config.AIConfig, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		clients:         make(map[string]CompletionClient),
		defaultProvider: cfg.DefaultProvider,
	}

	if cfg.OpenAI.IsAvailable() {
		client, err := NewOpenAIClient(&OpenAIConfig{
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			APIKey:  cfg.OpenAI.APIKey,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("configure openai client: %w", err)
		}
		r.clients["openai"] = client
	}

	if cfg.Anthropic.IsAvailable() {
		client, err := NewAnthropicClient(&AnthropicConfig{
			Model:  cfg.Anthropic.Model,
			APIKey: cfg.Anthropic.APIKey,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("configure anthropic client: %w", err)
		}
		r.clients["anthropic"] = client
	}

	if len(r.clients) == 0 {
		return nil, fmt.Errorf("no completion provider configured")
	}
	if _, ok := r.clients[r.defaultProvider]; !ok {
		// Fall back to whichever provider is configured.
		for name := range r.clients {
			r.defaultProvider = name
			break
		}
	}

	return r, nil
}

// Client returns the client for the given provider, or the default client
// when provider is empty.
func (r *Registry) Client(provider string) (CompletionClient, error) {
	if provider == "" {
		provider = r.defaultProvider
	}
	client, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("unknown completion provider %q", provider)
	}
	return client, nil
}

// Providers returns the configured provider tags.
func (r *Registry) Providers() []string {
	providers := make([]string, 0, len(r.clients))
	for name := range r.clients {
		providers = append(providers, name)
	}
	return providers
}
