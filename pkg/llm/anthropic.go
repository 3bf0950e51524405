package llm

import (
	"context"
	"fmt"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

// anthropicMaxTokens bounds completion length. Generated SQL plus an
// explanation fits comfortably under this.
const anthropicMaxTokens = 2000

// AnthropicClient provides completions over the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// AnthropicConfig holds configuration for creating an Anthropic client.
type AnthropicConfig struct {
	Model  string
	APIKey string
}

// NewAnthropicClient creates a client for the Anthropic API.
func NewAnthropicClient(cfg *AnthropicConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("llm.anthropic"),
	}, nil
}

// Complete implements CompletionClient.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	c.logger.Debug("completion request",
		zap.String("model", model),
		zap.Int("prompt_len", len(req.Prompt)))

	start := time.Now()

	temperature := float32(req.Temperature)
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(model),
		MaxTokens:   anthropicMaxTokens,
		System:      req.System,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.Prompt),
		},
	})
	if err != nil {
		c.logger.Error("completion request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, &apperrors.GenerationError{Provider: "anthropic", Err: err}
	}

	content := extractText(resp)
	if content == "" {
		return nil, &apperrors.GenerationError{
			Provider: "anthropic",
			Err:      fmt.Errorf("no text content in response"),
		}
	}

	c.logger.Info("completion request completed",
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &CompletionResult{
		Content:          content,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

// extractText returns the first text block of a messages response.
func extractText(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}

// Provider implements CompletionClient.
func (c *AnthropicClient) Provider() string { return "anthropic" }

// Model implements CompletionClient.
func (c *AnthropicClient) Model() string { return c.model }

// Ensure AnthropicClient implements CompletionClient at compile time.
var _ CompletionClient = (*AnthropicClient)(nil)
