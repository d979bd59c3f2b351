package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/internal/intelligence/embedding"
	"github.com/vantagelab/termlens/pkg/errors"
)

// EmbeddingCache stores term embeddings as JSON-encoded vectors keyed by the
// embedding model, its dimensionality, and the SHA-256 of the term text.
// Terms come from user exports and can contain arbitrary characters, so the
// hash keeps keys uniform and bounded. The model and dimensionality in the
// key make a reconfigured provider miss instead of serving vectors from a
// different geometry.
type EmbeddingCache struct {
	rdb        *redis.Client
	prefix     string
	model      string
	dimensions int
	ttl        time.Duration
	logger     logging.Logger
}

var _ embedding.Cache = (*EmbeddingCache)(nil)

// NewEmbeddingCache creates an embedding cache on top of an established
// client, scoped to one embedding model and dimensionality. A zero ttl means
// entries never expire.
func NewEmbeddingCache(client *Client, prefix, model string, dimensions int, ttl time.Duration, logger logging.Logger) *EmbeddingCache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if prefix == "" {
		prefix = "termlens:"
	}
	return &EmbeddingCache{
		rdb:        client.rdb,
		prefix:     prefix,
		model:      model,
		dimensions: dimensions,
		ttl:        ttl,
		logger:     logger.Named("embedding_cache"),
	}
}

func (c *EmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + "emb:" + c.model + ":" + strconv.Itoa(c.dimensions) + ":" + hex.EncodeToString(sum[:])
}

func (c *EmbeddingCache) Get(ctx context.Context, text string) ([]float64, bool, error) {
	data, err := c.rdb.Get(ctx, c.key(text)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheError, "get embedding")
	}
	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		// A corrupt entry is treated as a miss so it gets rewritten.
		c.logger.Warn("corrupt cache entry dropped", logging.Err(err))
		return nil, false, nil
	}
	return vector, true, nil
}

func (c *EmbeddingCache) Set(ctx context.Context, text string, vector []float64) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal embedding")
	}
	if err := c.rdb.Set(ctx, c.key(text), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "set embedding")
	}
	return nil
}
