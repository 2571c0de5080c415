package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/config"
)

// Client wraps the text-completion collaborator. Any provider implementing
// the /v1/chat/completions contract works via BaseURL.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *logrus.Logger
}

// Completer is the one-shot completion contract consumed by service handlers
// and the orchestrator planner.
type Completer interface {
	ChatCompletion(ctx context.Context, systemPrompt, userMessage string, maxTokens int) (string, error)
}

// NewClient creates an LLM client from configuration. A missing API key
// disables the client rather than failing startup.
func NewClient(cfg *config.LLMConfig, logger *logrus.Logger) *Client {
	if cfg.APIKey == "" {
		logger.Warn("LLM API key not set, LLM features will be disabled")
		return &Client{logger: logger}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Client{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// IsEnabled checks if LLM functionality is available
func (c *Client) IsEnabled() bool {
	return c.client != nil
}

// ChatCompletion sends a system prompt and user message and returns the
// completion text.
func (c *Client) ChatCompletion(ctx context.Context, systemPrompt, userMessage string, maxTokens int) (string, error) {
	if !c.IsEnabled() {
		return "", fmt.Errorf("LLM client not enabled")
	}
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userMessage,
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get LLM response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debugf("LLM completion returned %d chars", len(content))
	return content, nil
}
