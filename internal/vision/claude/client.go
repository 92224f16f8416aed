// Package claude reads receipts with the Anthropic Messages API.
package claude

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"ledgerlens/internal/config"
	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
	"ledgerlens/internal/vision"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	provider     = "claude"
	defaultModel = "claude-sonnet-4-20250514"
)

// Client implements port.VisionService using the Anthropic Messages API.
type Client struct {
	model string
	http  *vision.Transport
}

// NewClient creates a Claude vision client from a provider config.
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
		http: vision.NewTransport(provider, endpoint, cfg, map[string]string{
			"x-api-key":         cfg.APIKey,
			"anthropic-version": apiVersion,
		}),
	}
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Extract sends the image before the prompt, as Anthropic recommends for vision.
func (c *Client) Extract(ctx context.Context, input port.VisionInput) (*port.VisionOutput, error) {
	switch input.ContentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return nil, fmt.Errorf("%w: claude does not accept %s", domain.ErrUnsupportedImageFormat, input.ContentType)
	}

	body, err := c.http.PostJSON(ctx, messagesRequest{
		Model:       c.model,
		MaxTokens:   4096,
		Temperature: 0.1,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{Type: "image", Source: &imageSource{
					Type:      "base64",
					MediaType: input.ContentType,
					Data:      base64.StdEncoding.EncodeToString(input.ImageBytes),
				}},
				{Type: "text", Text: input.Prompt},
			},
		}},
	})
	if err != nil {
		return nil, err
	}

	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: claude: decoding response: %v", domain.ErrExtractionService, err)
	}
	// A max_tokens stop still yields partial text, which the extractor repairs.
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &port.VisionOutput{Text: text.String(), ModelUsed: c.model, Provider: provider}, nil
}

// Ping checks that the API host answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.http.Ping(ctx)
}
