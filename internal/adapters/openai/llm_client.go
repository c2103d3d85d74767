package openai

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-triage/internal/core"
)

// Client implements the CompletionClient port using OpenAI chat completions.
type Client struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewClient creates a new OpenAI completion client.
func NewClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *Client {
	return &Client{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// ModelName identifies the configured model.
func (c *Client) ModelName() string {
	return c.modelName
}

// Complete sends a prompt and returns the raw text reply. Provider failures
// are mapped onto the gateway's transient/permanent split.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &core.TransientError{Err: errors.New("empty response from OpenAI")}
	}

	return resp.Choices[0].Message.Content, nil
}

// classifyError maps OpenAI failures onto the error taxonomy: rate limits,
// 5xx and network trouble are retryable, everything else is not.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return &core.TransientError{Err: err}
		}
		return &core.PermanentError{Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &core.TransientError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &core.TransientError{Err: err}
	}

	return &core.PermanentError{Err: fmt.Errorf("openai request failed: %w", err)}
}
