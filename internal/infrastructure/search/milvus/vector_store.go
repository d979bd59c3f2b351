// Package milvus archives term embeddings so later runs can run similarity
// lookups against historical vocabularies without re-embedding.
package milvus

import (
	"context"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/vantagelab/termlens/internal/application/analysis"
	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

const (
	collectionSuffix = "term_vectors"

	maxIDLength   = 256
	maxTermLength = 512
)

// milvusAPI is the slice of client.Client the store uses, abstracted for
// testing.
type milvusAPI interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Close() error
}

// VectorStore writes term embeddings into a Milvus collection keyed by
// batch id and term text.
type VectorStore struct {
	api        milvusAPI
	collection string
	dim        int
	indexType  string
	logger     logging.Logger
}

var _ analysis.VectorStore = (*VectorStore)(nil)

// NewVectorStore connects to Milvus and ensures the term vector collection
// exists with a cosine index.
func NewVectorStore(ctx context.Context, cfg config.MilvusConfig, logger logging.Logger) (*VectorStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.ErrCodeValidation, "milvus address is required")
	}
	if cfg.EmbeddingDim <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "milvus embedding dimension is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	api, err := client.NewClient(dialCtx, client.Config{
		Address: cfg.Addr,
		DBName:  cfg.DBName,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "connect to milvus")
	}

	s := &VectorStore{
		api:        api,
		collection: cfg.CollectionPrefix + collectionSuffix,
		dim:        cfg.EmbeddingDim,
		indexType:  cfg.IndexType,
		logger:     logger.Named("milvus"),
	}
	if err := s.ensureCollection(ctx); err != nil {
		api.Close()
		return nil, err
	}
	logger.Info("milvus vector store ready",
		logging.String("collection", s.collection),
		logging.Int("dim", s.dim))
	return s, nil
}

func (s *VectorStore) ensureCollection(ctx context.Context) error {
	has, err := s.api.HasCollection(ctx, s.collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "check collection")
	}
	if has {
		return nil
	}

	schema := entity.NewSchema().
		WithName(s.collection).
		WithDescription("archived term embeddings per batch").
		WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName("batch_id").WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength)).
		WithField(entity.NewField().WithName("term").WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxTermLength)).
		WithField(entity.NewField().WithName("embedding").WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(s.dim)))

	if err := s.api.CreateCollection(ctx, schema, 2); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "create collection")
	}

	idx, err := s.buildIndex()
	if err != nil {
		return err
	}
	if err := s.api.CreateIndex(ctx, s.collection, "embedding", idx, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "create index")
	}
	if err := s.api.LoadCollection(ctx, s.collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "load collection")
	}
	return nil
}

func (s *VectorStore) buildIndex() (entity.Index, error) {
	var (
		idx entity.Index
		err error
	)
	switch s.indexType {
	case "HNSW":
		idx, err = entity.NewIndexHNSW(entity.COSINE, 8, 200)
	default:
		idx, err = entity.NewIndexIvfFlat(entity.COSINE, 1024)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "build index")
	}
	return idx, nil
}

// UpsertTermVectors stores the embeddings of a batch. Records without an
// embedding are skipped; an upsert of zero rows is a no-op.
func (s *VectorStore) UpsertTermVectors(ctx context.Context, batchID string, records []term.Record) error {
	ids := make([]string, 0, len(records))
	batchIDs := make([]string, 0, len(records))
	terms := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))

	for i := range records {
		r := &records[i]
		if len(r.Embedding) != s.dim {
			continue
		}
		ids = append(ids, batchID+":"+r.Term)
		batchIDs = append(batchIDs, batchID)
		terms = append(terms, r.Term)
		vectors = append(vectors, toFloat32(r.Embedding))
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := s.api.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("batch_id", batchIDs),
		entity.NewColumnVarChar("term", terms),
		entity.NewColumnFloatVector("embedding", s.dim, vectors),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "upsert term vectors")
	}
	s.logger.Debug("term vectors archived",
		logging.String("batch_id", batchID),
		logging.Int("count", len(ids)))
	return nil
}

// Close releases the Milvus connection.
func (s *VectorStore) Close() error {
	return s.api.Close()
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
