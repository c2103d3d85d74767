package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/mikey/llm-mail-triage/internal/core"
)

// Client implements the CompletionClient port using Google Gemini.
type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *zap.Logger
}

// NewClient creates a new Gemini completion client.
func NewClient(
	client *genai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *Client {
	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Client{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    logger,
	}
}

// ModelName identifies the configured model.
func (c *Client) ModelName() string {
	return c.modelName
}

// Close closes the underlying Gemini client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Complete sends a prompt and returns the raw text reply.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	fullPrompt := prompt
	if system != "" {
		fullPrompt = system + "\n\n" + prompt
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(fullPrompt))
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &core.TransientError{Err: errors.New("empty response from Gemini")}
	}

	return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
}

// classifyError maps Gemini failures onto the error taxonomy using the
// googleapi status code.
func classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
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

	return &core.PermanentError{Err: fmt.Errorf("gemini request failed: %w", err)}
}
