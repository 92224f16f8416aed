// Package gemini reads receipts with Google's Gemini generateContent API.
package gemini

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
	apiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	provider     = "gemini"
	defaultModel = "gemini-2.0-flash"
)

// Client implements port.VisionService using Google's Gemini API.
type Client struct {
	model string
	http  *vision.Transport
}

// NewClient creates a Gemini vision client. The endpoint is derived from the model.
func NewClient(cfg *config.VisionProviderConfig) *Client {
	return NewClientWithEndpoint(cfg, "")
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewClientWithEndpoint(cfg *config.VisionProviderConfig, endpoint string) *Client {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}
	return &Client{
		model: model,
		http:  vision.NewTransport(provider, endpoint, cfg, map[string]string{"x-goog-api-key": cfg.APIKey}),
	}
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopK             int     `json:"topK"`
	TopP             float64 `json:"topP"`
	ResponseMimeType string  `json:"responseMimeType"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// Extract accepts every allowed receipt format, including HEIC and HEIF.
func (c *Client) Extract(ctx context.Context, input port.VisionInput) (*port.VisionOutput, error) {
	if _, ok := domain.AllowedImageContentTypes[input.ContentType]; !ok {
		return nil, fmt.Errorf("%w: gemini does not accept %s", domain.ErrUnsupportedImageFormat, input.ContentType)
	}

	body, err := c.http.PostJSON(ctx, generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: input.Prompt},
				{InlineData: &inlineData{
					MimeType: input.ContentType,
					Data:     base64.StdEncoding.EncodeToString(input.ImageBytes),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:      0.1,
			TopK:             1,
			TopP:             0.8,
			ResponseMimeType: "application/json",
			MaxOutputTokens:  4096,
		},
	})
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: gemini: decoding response: %v", domain.ErrExtractionService, err)
	}
	var text strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	return &port.VisionOutput{Text: text.String(), ModelUsed: c.model, Provider: provider}, nil
}

// Ping checks that the API host answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.http.Ping(ctx)
}
