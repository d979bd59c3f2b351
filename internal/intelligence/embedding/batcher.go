package embedding

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/vantagelab/termlens/internal/infrastructure/monitoring/prometheus"
	"github.com/vantagelab/termlens/internal/intelligence/common"
	"github.com/vantagelab/termlens/pkg/errors"
)

// BatchSize is the number of terms vectorized per provider call. Sequential
// batches are paced by the rate limiter to respect provider rate limits.
const BatchSize = 5

// interBatchInterval is the minimum spacing between provider calls.
const interBatchInterval = 200 * time.Millisecond

// Result is the outcome of embedding one term batch. Failed terms are
// excluded from clustering rather than carrying fabricated vectors; callers
// surface the count so runs can be reported as partial.
type Result struct {
	// Embedded holds the input records that now carry vectors, in input
	// order.
	Embedded []term.Record

	// Failed holds the records dropped after exhausting the retry budget.
	Failed []term.Record

	// CacheHits counts terms served from the cache.
	CacheHits int

	// ProviderCalls counts provider round-trips, including retries.
	ProviderCalls int
}

// Batcher drives term records through the embedding provider in fixed-size
// batches with caching, pacing, and bounded retries.
type Batcher struct {
	provider Provider
	cache    Cache
	policy   common.RetryPolicy
	limiter  *rate.Limiter
	metrics  *prommetrics.Metrics
	logger   logging.Logger
}

// NewBatcher constructs a Batcher. The cache and metrics may be nil, in which
// case every term goes to the provider and calls go unrecorded.
func NewBatcher(provider Provider, cache Cache, metrics *prommetrics.Metrics, logger logging.Logger) *Batcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Batcher{
		provider: provider,
		cache:    cache,
		policy:   common.DefaultRetryPolicy(),
		limiter:  rate.NewLimiter(rate.Every(interBatchInterval), 1),
		metrics:  metrics,
		logger:   logger.Named("batcher"),
	}
}

// Dimensions reports the provider's configured vector dimensionality.
func (b *Batcher) Dimensions() int {
	return b.provider.Dimensions()
}

// EmbedAll vectorizes records, preserving input order among the successes.
// Records already carrying a vector are passed through untouched. A batch
// that still fails after the retry budget is retried term by term so that
// only the terms failing on their own are dropped; EmbedAll itself fails
// only on context cancellation or when every term failed.
func (b *Batcher) EmbedAll(ctx context.Context, records []term.Record) (*Result, error) {
	res := &Result{Embedded: make([]term.Record, 0, len(records))}

	pending := make([]term.Record, 0, len(records))
	for _, rec := range records {
		if rec.HasEmbedding() {
			res.Embedded = append(res.Embedded, rec)
			continue
		}
		if vec, ok := b.cacheGet(ctx, rec.Term); ok {
			rec.Embedding = vec
			res.Embedded = append(res.Embedded, rec)
			res.CacheHits++
			continue
		}
		pending = append(pending, rec)
	}

	for start := 0; start < len(pending); start += BatchSize {
		end := start + BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if err := b.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "embedding pacing interrupted")
		}

		vectors, err := b.embedBatch(ctx, batch, res)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "embedding cancelled")
			}
			if len(batch) == 1 {
				b.logger.Warn("term embedding failed after retries, dropping term",
					logging.String("term", batch[0].Term),
					logging.Err(err))
				res.Failed = append(res.Failed, batch[0])
				continue
			}
			// One poisoned input should not take the rest of the batch
			// with it; retry the terms one at a time.
			b.logger.Warn("embedding batch failed after retries, salvaging terms individually",
				logging.Int("batch_size", len(batch)),
				logging.Err(err))
			if err := b.salvage(ctx, batch, res); err != nil {
				return nil, err
			}
			continue
		}

		for i := range batch {
			rec := batch[i]
			rec.Embedding = vectors[i]
			res.Embedded = append(res.Embedded, rec)
			b.cacheSet(ctx, rec.Term, vectors[i])
		}
	}

	if len(records) > 0 && len(res.Embedded) == 0 {
		return res, errors.EmbeddingUnavailable("all terms failed to embed")
	}
	return res, nil
}

// salvage re-embeds a failed batch term by term so one poisoned input drops
// only itself. Each term gets its own retry budget.
func (b *Batcher) salvage(ctx context.Context, batch []term.Record, res *Result) error {
	for i := range batch {
		if err := b.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodeTimeout, "embedding pacing interrupted")
		}
		vectors, err := b.embedBatch(ctx, batch[i:i+1], res)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "embedding cancelled")
			}
			b.logger.Warn("term embedding failed after retries, dropping term",
				logging.String("term", batch[i].Term),
				logging.Err(err))
			res.Failed = append(res.Failed, batch[i])
			continue
		}
		rec := batch[i]
		rec.Embedding = vectors[0]
		res.Embedded = append(res.Embedded, rec)
		b.cacheSet(ctx, rec.Term, vectors[0])
	}
	return nil
}

func (b *Batcher) embedBatch(ctx context.Context, batch []term.Record, res *Result) ([][]float64, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Term
	}
	if b.metrics != nil {
		b.metrics.EmbeddingBatchSize.Observe(float64(len(batch)))
	}

	var vectors [][]float64
	attempts := 0
	err := b.policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		res.ProviderCalls++
		start := time.Now()
		out, err := b.provider.Embed(ctx, texts)
		b.observeCall(time.Since(start), attempts, err)
		if err != nil {
			return err
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, errors.EmbeddingUnavailable("provider returned wrong vector count")
	}
	return vectors, nil
}

func (b *Batcher) observeCall(took time.Duration, attempt int, err error) {
	if b.metrics == nil {
		return
	}
	b.metrics.EmbeddingDuration.Observe(took.Seconds())
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "failed"
	case attempt > 1:
		outcome = "retried"
	}
	b.metrics.EmbeddingCalls.WithLabelValues(outcome).Inc()
}

func (b *Batcher) cacheGet(ctx context.Context, text string) ([]float64, bool) {
	if b.cache == nil {
		return nil, false
	}
	vec, ok, err := b.cache.Get(ctx, text)
	if err != nil {
		b.logger.Debug("embedding cache read failed", logging.Err(err))
		return nil, false
	}
	return vec, ok
}

func (b *Batcher) cacheSet(ctx context.Context, text string, vec []float64) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Set(ctx, text, vec); err != nil {
		b.logger.Debug("embedding cache write failed", logging.Err(err))
	}
}
