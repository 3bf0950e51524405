package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

// OpenAIClient provides completions over any OpenAI-compatible endpoint
// (OpenAI, vLLM, Ollama).
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// OpenAIConfig holds configuration for creating an OpenAI-compatible client.
type OpenAIConfig struct {
	BaseURL string // e.g. "https://api.openai.com/v1"
	Model   string // e.g. "gpt-4o"
	APIKey  string // optional for local endpoints
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg *OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("llm.openai"),
	}, nil
}

// Complete implements CompletionClient.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	c.logger.Debug("completion request",
		zap.String("model", model),
		zap.Int("prompt_len", len(req.Prompt)))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		c.logger.Error("completion request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, &apperrors.GenerationError{Provider: "openai", Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &apperrors.GenerationError{
			Provider: "openai",
			Err:      fmt.Errorf("no choices in response"),
		}
	}

	c.logger.Info("completion request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &CompletionResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Provider implements CompletionClient.
func (c *OpenAIClient) Provider() string { return "openai" }

// Model implements CompletionClient.
func (c *OpenAIClient) Model() string { return c.model }

// Ensure OpenAIClient implements CompletionClient at compile time.
var _ CompletionClient = (*OpenAIClient)(nil)
