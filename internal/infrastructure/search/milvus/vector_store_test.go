package milvus

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/vantagelab/termlens/pkg/errors"
)

type fakeMilvus struct {
	hasCollection bool
	hasErr        error
	upsertErr     error

	createdSchema  *entity.Schema
	createdIndexes []string
	loaded         []string
	upserts        []upsertCall
	closed         bool
}

type upsertCall struct {
	collection string
	columns    []entity.Column
}

func (f *fakeMilvus) HasCollection(_ context.Context, _ string) (bool, error) {
	return f.hasCollection, f.hasErr
}

func (f *fakeMilvus) CreateCollection(_ context.Context, schema *entity.Schema, _ int32, _ ...client.CreateCollectionOption) error {
	f.createdSchema = schema
	return nil
}

func (f *fakeMilvus) CreateIndex(_ context.Context, collName, fieldName string, _ entity.Index, _ bool, _ ...client.IndexOption) error {
	f.createdIndexes = append(f.createdIndexes, collName+"/"+fieldName)
	return nil
}

func (f *fakeMilvus) LoadCollection(_ context.Context, collName string, _ bool, _ ...client.LoadCollectionOption) error {
	f.loaded = append(f.loaded, collName)
	return nil
}

func (f *fakeMilvus) Upsert(_ context.Context, collName, _ string, columns ...entity.Column) (entity.Column, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{collection: collName, columns: columns})
	return nil, nil
}

func (f *fakeMilvus) Close() error {
	f.closed = true
	return nil
}

func newTestStore(api milvusAPI) *VectorStore {
	return &VectorStore{
		api:        api,
		collection: "termlens_term_vectors",
		dim:        2,
		indexType:  "HNSW",
		logger:     logging.NewNopLogger(),
	}
}

func TestEnsureCollectionCreatesSchemaAndIndex(t *testing.T) {
	api := &fakeMilvus{hasCollection: false}
	s := newTestStore(api)

	require.NoError(t, s.ensureCollection(context.Background()))
	require.NotNil(t, api.createdSchema)
	assert.Equal(t, "termlens_term_vectors", api.createdSchema.CollectionName)
	assert.Equal(t, []string{"termlens_term_vectors/embedding"}, api.createdIndexes)
	assert.Equal(t, []string{"termlens_term_vectors"}, api.loaded)
}

func TestEnsureCollectionSkipsExisting(t *testing.T) {
	api := &fakeMilvus{hasCollection: true}
	s := newTestStore(api)

	require.NoError(t, s.ensureCollection(context.Background()))
	assert.Nil(t, api.createdSchema)
	assert.Empty(t, api.createdIndexes)
}

func TestEnsureCollectionWrapsCheckError(t *testing.T) {
	api := &fakeMilvus{hasErr: assert.AnError}
	s := newTestStore(api)

	err := s.ensureCollection(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeExternalService))
}

func TestUpsertTermVectors(t *testing.T) {
	api := &fakeMilvus{hasCollection: true}
	s := newTestStore(api)

	records := []term.Record{
		{Term: "wireless mouse", Embedding: []float64{1, 0}},
		{Term: "ergonomic keyboard", Embedding: []float64{0, 1}},
	}
	require.NoError(t, s.UpsertTermVectors(context.Background(), "batch-1", records))
	require.Len(t, api.upserts, 1)

	call := api.upserts[0]
	assert.Equal(t, "termlens_term_vectors", call.collection)
	require.Len(t, call.columns, 4)

	ids, ok := call.columns[0].(*entity.ColumnVarChar)
	require.True(t, ok)
	assert.Equal(t, []string{"batch-1:wireless mouse", "batch-1:ergonomic keyboard"}, ids.Data())

	vectors, ok := call.columns[3].(*entity.ColumnFloatVector)
	require.True(t, ok)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors.Data())
}

func TestUpsertSkipsRecordsWithWrongDimension(t *testing.T) {
	api := &fakeMilvus{hasCollection: true}
	s := newTestStore(api)

	records := []term.Record{
		{Term: "good", Embedding: []float64{1, 0}},
		{Term: "short", Embedding: []float64{1}},
		{Term: "missing"},
	}
	require.NoError(t, s.UpsertTermVectors(context.Background(), "batch-1", records))
	require.Len(t, api.upserts, 1)

	ids := api.upserts[0].columns[0].(*entity.ColumnVarChar)
	assert.Equal(t, []string{"batch-1:good"}, ids.Data())
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	api := &fakeMilvus{hasCollection: true}
	s := newTestStore(api)

	require.NoError(t, s.UpsertTermVectors(context.Background(), "batch-1", nil))
	assert.Empty(t, api.upserts)
}

func TestUpsertWrapsError(t *testing.T) {
	api := &fakeMilvus{hasCollection: true, upsertErr: assert.AnError}
	s := newTestStore(api)

	err := s.UpsertTermVectors(context.Background(), "batch-1", []term.Record{
		{Term: "good", Embedding: []float64{1, 0}},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeExternalService))
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1}, toFloat32([]float64{0.5, -1}))
	assert.Empty(t, toFloat32(nil))
}
