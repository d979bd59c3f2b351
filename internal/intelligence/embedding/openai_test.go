package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/pkg/errors"
)

func embeddingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Provider) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewOpenAIProvider(config.EmbeddingConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Model:      "text-embedding-3-small",
		Dimensions: 2,
		Timeout:    time.Second,
	}, nil)
	require.NoError(t, err)
	return srv, p
}

func TestOpenAIProviderEmbed(t *testing.T) {
	var gotAuth string
	_, p := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"wireless mouse", "usb hub"}, req.Input)

		// Out-of-order items: index is authoritative.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0.3, 0.4}},
				{"index": 0, "embedding": []float64{0.1, 0.2}},
			},
		})
	})

	got, err := p.Embed(context.Background(), []string{"wireless mouse", "usb hub"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, got, 2)
	assert.Equal(t, []float64{0.1, 0.2}, got[0])
	assert.Equal(t, []float64{0.3, 0.4}, got[1])
	assert.Equal(t, 2, p.Dimensions())
}

func TestOpenAIProviderEmptyInput(t *testing.T) {
	_, p := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	})
	got, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpenAIProviderRateLimited(t *testing.T) {
	_, p := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := p.Embed(context.Background(), []string{"x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingRateLimited))
}

func TestOpenAIProviderServerError(t *testing.T) {
	_, p := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := p.Embed(context.Background(), []string{"x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingUnavailable))
}

func TestOpenAIProviderAPIError(t *testing.T) {
	_, p := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model overloaded", "type": "server_error"},
		})
	})
	_, err := p.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingUnavailable))
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestOpenAIProviderDimensionMismatch(t *testing.T) {
	_, p := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 0, "embedding": []float64{0.1, 0.2, 0.3}},
			},
		})
	})
	_, err := p.Embed(context.Background(), []string{"x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingDimensionMismatch))
}

func TestOpenAIProviderCountMismatch(t *testing.T) {
	_, p := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float64{0.1, 0.2}}},
		})
	})
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingUnavailable))
}

func TestNewOpenAIProviderValidation(t *testing.T) {
	_, err := NewOpenAIProvider(config.EmbeddingConfig{Dimensions: 2}, nil)
	assert.Error(t, err)

	_, err = NewOpenAIProvider(config.EmbeddingConfig{BaseURL: "http://localhost", Dimensions: 0}, nil)
	assert.Error(t, err)
}
