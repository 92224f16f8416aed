package vision_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlens/internal/config"
	"ledgerlens/internal/domain"
	"ledgerlens/internal/vision"
)

func TestTransport_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Key"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "v", body["k"])
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tr := vision.NewTransport("test", server.URL, &config.VisionProviderConfig{}, map[string]string{"X-Key": "secret"})
	assert.Equal(t, "test", tr.Provider())
	out, err := tr.PostJSON(context.Background(), map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
}

func TestTransport_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tr := vision.NewTransport("test", server.URL, &config.VisionProviderConfig{TimeoutSecs: 5}, nil)
	_, err := tr.PostJSON(context.Background(), struct{}{})
	var rlErr *vision.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.EqualValues(t, 3, rlErr.RetryAfter.Seconds())
	assert.ErrorIs(t, err, domain.ErrExtractionService)
}

func TestTransport_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := vision.NewTransport("test", server.URL, &config.VisionProviderConfig{}, nil)
	_, err := tr.PostJSON(context.Background(), struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionService)
	var rlErr *vision.RateLimitError
	assert.False(t, errors.As(err, &rlErr))
}
