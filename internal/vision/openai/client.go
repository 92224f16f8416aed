// Package openai reads receipts with the OpenAI Chat Completions API.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"ledgerlens/internal/config"
	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
	"ledgerlens/internal/vision"
)

const (
	apiURL       = "https://api.openai.com/v1/chat/completions"
	provider     = "openai"
	defaultModel = "gpt-4o"
)

// Client implements port.VisionService using the OpenAI Chat Completions API.
type Client struct {
	model string
	http  *vision.Transport
}

// NewClient creates an OpenAI vision client from a provider config.
func NewClient(cfg *config.VisionProviderConfig) *Client {
	return NewClientWithEndpoint(cfg, apiURL)
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewClientWithEndpoint(cfg *config.VisionProviderConfig, endpoint string) *Client {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	return &Client{
		model: model,
		http:  vision.NewTransport(provider, endpoint, cfg, map[string]string{"Authorization": "Bearer " + cfg.APIKey}),
	}
}

type imageURL struct {
	URL string `json:"url"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model               string         `json:"model"`
	MaxCompletionTokens int            `json:"max_completion_tokens"`
	Temperature         float64        `json:"temperature"`
	Messages            []chatMessage  `json:"messages"`
	ResponseFormat      responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Extract sends the image as a data URI and asks for a JSON object response.
func (c *Client) Extract(ctx context.Context, input port.VisionInput) (*port.VisionOutput, error) {
	switch input.ContentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return nil, fmt.Errorf("%w: openai does not accept %s", domain.ErrUnsupportedImageFormat, input.ContentType)
	}

	dataURI := "data:" + input.ContentType + ";base64," + base64.StdEncoding.EncodeToString(input.ImageBytes)
	body, err := c.http.PostJSON(ctx, chatRequest{
		Model:               c.model,
		MaxCompletionTokens: 4096,
		Temperature:         0.1,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
				{Type: "text", Text: input.Prompt},
			},
		}},
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: openai: decoding response: %v", domain.ErrExtractionService, err)
	}
	out := &port.VisionOutput{ModelUsed: c.model, Provider: provider}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
	}
	return out, nil
}

// Ping checks that the API host answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.http.Ping(ctx)
}
