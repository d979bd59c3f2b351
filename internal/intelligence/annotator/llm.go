package annotator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/vantagelab/termlens/internal/infrastructure/monitoring/prometheus"
	"github.com/vantagelab/termlens/internal/intelligence/common"
	"github.com/vantagelab/termlens/pkg/errors"
)

// LLMClient calls an OpenAI-compatible chat-completions endpoint to annotate
// clusters and describe attribute groups. Calls go through a circuit breaker
// so a struggling provider sheds load quickly instead of stalling every run,
// and through the shared retry policy for transient failures.
type LLMClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	policy      common.RetryPolicy
	metrics     *prommetrics.Metrics
	logger      logging.Logger
}

var _ Annotator = (*LLMClient)(nil)
var _ cluster.PatternDescriber = (*LLMClient)(nil)

// NewLLMClient constructs an LLMClient from the annotator configuration.
// A nil metrics leaves calls unrecorded.
func NewLLMClient(cfg config.AnnotatorConfig, metrics *prommetrics.Metrics, logger logging.Logger) (*LLMClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "annotator base URL cannot be empty")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	log := logger.Named("annotator")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "annotator",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
	})

	return &LLMClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     breaker,
		policy:      common.DefaultRetryPolicy(),
		metrics:     metrics,
		logger:      log,
	}, nil
}

type annotationPayload struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Tags       []struct {
		Category string `json:"category"`
		Value    string `json:"value"`
	} `json:"tags"`
	Confidence float64 `json:"confidence"`
}

// Annotate implements Annotator.
func (c *LLMClient) Annotate(ctx context.Context, terms []string, metrics cluster.Metrics, tags []cluster.Tag) (*Annotation, error) {
	prompt, err := buildAnnotatePrompt(terms, metrics, tags)
	if err != nil {
		return nil, err
	}

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var payload annotationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnnotationRejected, "annotation response is not valid JSON")
	}
	if payload.Title == "" {
		return nil, errors.New(errors.ErrCodeAnnotationRejected, "annotation response missing title")
	}

	ann := &Annotation{
		Title:      payload.Title,
		Summary:    payload.Summary,
		Confidence: clampConfidence(payload.Confidence),
	}
	for _, t := range payload.Tags {
		if t.Category == "" || t.Value == "" {
			continue
		}
		ann.Tags = append(ann.Tags, cluster.Tag{
			Category:   t.Category,
			Value:      t.Value,
			Confidence: ann.Confidence,
		})
	}
	return ann, nil
}

// DescribeGroup implements cluster.PatternDescriber.
func (c *LLMClient) DescribeGroup(ctx context.Context, _ []string, group cluster.AttributeGroup) (string, float64, error) {
	prompt, err := buildDescribePrompt(group)
	if err != nil {
		return "", 0, err
	}

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return "", 0, err
	}

	var payload struct {
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", 0, errors.Wrap(err, errors.ErrCodeAnnotationRejected, "pattern response is not valid JSON")
	}
	return payload.Description, clampConfidence(payload.Confidence), nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete sends one chat completion through the breaker and retry policy
// and returns the model's message content with any code fences stripped.
func (c *LLMClient) complete(ctx context.Context, prompt string) (string, error) {
	var content string
	start := time.Now()
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.completeOnce(ctx, prompt)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return errors.Wrap(err, errors.ErrCodeAnnotationUnavailable, "annotator circuit open")
			}
			return err
		}
		content = out.(string)
		return nil
	})
	c.observeCall(time.Since(start), err)
	if err != nil {
		return "", err
	}
	return content, nil
}

// observeCall records one completed annotator call. A call that exhausted
// the retry budget counts as degraded: the pipeline falls back to
// placeholder annotations for it.
func (c *LLMClient) observeCall(took time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.AnnotationDuration.Observe(took.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "degraded"
	}
	c.metrics.AnnotationCalls.WithLabelValues(outcome).Inc()
}

func (c *LLMClient) completeOnce(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "marshal chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAnnotationUnavailable, "annotation request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAnnotationUnavailable, "read annotation response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.ErrCodeAnnotationUnavailable,
			fmt.Sprintf("annotator status %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAnnotationUnavailable, "decode annotation response")
	}
	if parsed.Error != nil {
		return "", errors.New(errors.ErrCodeAnnotationUnavailable, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New(errors.ErrCodeAnnotationUnavailable, "annotator returned no choices")
	}
	return stripCodeFence(parsed.Choices[0].Message.Content), nil
}

// stripCodeFence removes a surrounding markdown code fence, which chat
// models add despite instructions often enough to handle here.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
