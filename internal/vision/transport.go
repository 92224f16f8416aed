package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ledgerlens/internal/config"
	"ledgerlens/internal/domain"
)

// DefaultTimeout applies when a provider config leaves timeout_secs unset.
const DefaultTimeout = 60 * time.Second

// maxErrorBody bounds the provider response quoted in errors.
const maxErrorBody = 500

// Transport posts JSON to one provider endpoint and classifies failures. Non-200
// answers wrap domain.ErrExtractionService; 429 additionally becomes a *RateLimitError
// so FallbackService can move on.
type Transport struct {
	provider string
	endpoint string
	headers  http.Header
	client   *http.Client
}

// NewTransport builds a Transport using the provider's configured timeout.
func NewTransport(provider, endpoint string, cfg *config.VisionProviderConfig, headers map[string]string) *Transport {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := make(http.Header, len(headers)+1)
	h.Set("Content-Type", "application/json")
	for k, v := range headers {
		h.Set(k, v)
	}
	return &Transport{
		provider: provider,
		endpoint: endpoint,
		headers:  h,
		client:   &http.Client{Timeout: timeout},
	}
}

// Provider names the provider this transport talks to.
func (t *Transport) Provider() string { return t.provider }

// PostJSON sends payload and returns the raw body of a 200 response.
func (t *Transport) PostJSON(ctx context.Context, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encoding request: %w", t.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", t.provider, err)
	}
	req.Header = t.headers.Clone()

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", t.provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading response: %v", domain.ErrExtractionService, t.provider, err)
	}
	if resp.StatusCode == http.StatusOK {
		return respBody, nil
	}

	statusErr := fmt.Errorf("%w: %s answered %d: %s",
		domain.ErrExtractionService, t.provider, resp.StatusCode, Truncate(string(respBody), maxErrorBody))
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewRateLimitError(t.provider, statusErr, ParseRetryAfterHeader(resp.Header.Get("Retry-After")))
	}
	return nil, statusErr
}

// Ping reports whether the endpoint host answers at all; any HTTP status counts.
func (t *Transport) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
