package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

// openAIProvider calls an OpenAI-compatible embeddings endpoint.
type openAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	logger     logging.Logger
}

// NewOpenAIProvider constructs a Provider against an OpenAI-compatible API.
func NewOpenAIProvider(cfg config.EmbeddingConfig, logger logging.Logger) (Provider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "embedding base URL cannot be empty")
	}
	if cfg.Dimensions < 1 {
		return nil, errors.New(errors.ErrCodeBadRequest, "embedding dimensions must be positive")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &openAIProvider{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("embedding"),
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *openAIProvider) Dimensions() int {
	return p.dimensions
}

func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "marshal embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "embedding request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "read embedding response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.New(errors.ErrCodeEmbeddingRateLimited, "embedding provider rate limited")
	case resp.StatusCode != http.StatusOK:
		p.logger.Warn("embedding provider returned non-200",
			logging.Int("status", resp.StatusCode))
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable,
			fmt.Sprintf("embedding provider status %d", resp.StatusCode))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "decode embedding response")
	}
	if parsed.Error != nil {
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, parsed.Error.Message)
	}
	if len(parsed.Data) != len(texts) {
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data)))
	}

	// The API may return items out of order; index is authoritative.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	out := make([][]float64, len(texts))
	for i, d := range parsed.Data {
		if len(d.Embedding) != p.dimensions {
			return nil, errors.New(errors.ErrCodeEmbeddingDimensionMismatch,
				fmt.Sprintf("provider returned %d dimensions, want %d", len(d.Embedding), p.dimensions))
		}
		out[i] = d.Embedding
	}
	return out, nil
}
