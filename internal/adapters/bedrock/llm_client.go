package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-triage/internal/core"
)

// Client implements the CompletionClient port using Amazon Bedrock.
type Client struct {
	client      *bedrockruntime.Client
	modelID     string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewClient creates a new Bedrock completion client.
func NewClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *Client {
	return &Client{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// ModelName identifies the configured model.
func (c *Client) ModelName() string {
	return c.modelID
}

// Complete sends a prompt and returns the raw text reply. The request and
// response payload shapes depend on the model family.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	fullPrompt := prompt
	if system != "" {
		fullPrompt = system + "\n\n" + prompt
	}

	var payload []byte
	var err error

	switch {
	case c.isAnthropicModel():
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               fullPrompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	case c.isAmazonTitanModel():
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": fullPrompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	default:
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      fullPrompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return "", &core.PermanentError{Err: fmt.Errorf("failed to marshal request payload: %w", err)}
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", classifyError(err)
	}

	return c.extractText(resp.Body)
}

func (c *Client) extractText(body []byte) (string, error) {
	switch {
	case c.isAnthropicModel():
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", &core.TransientError{Err: fmt.Errorf("failed to unmarshal Claude response: %w", err)}
		}
		return claudeResp.Completion, nil

	case c.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", &core.TransientError{Err: fmt.Errorf("failed to unmarshal Titan response: %w", err)}
		}
		if len(titanResp.Results) == 0 {
			return "", &core.TransientError{Err: errors.New("empty response from Titan model")}
		}
		return titanResp.Results[0].OutputText, nil

	default:
		var genericResp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", &core.TransientError{Err: fmt.Errorf("failed to unmarshal generic response: %w", err)}
		}
		switch {
		case genericResp.Output != "":
			return genericResp.Output, nil
		case genericResp.Text != "":
			return genericResp.Text, nil
		case genericResp.Response != "":
			return genericResp.Response, nil
		default:
			return string(body), nil
		}
	}
}

func (c *Client) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
}

func (c *Client) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}

// classifyError maps Bedrock failures onto the error taxonomy using the
// smithy API error codes.
func classifyError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailableException", "ModelTimeoutException", "InternalServerException":
			return &core.TransientError{Err: err}
		default:
			return &core.PermanentError{Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &core.TransientError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &core.TransientError{Err: err}
	}

	return &core.PermanentError{Err: fmt.Errorf("bedrock request failed: %w", err)}
}
