package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/intelligence/annotator"
	"github.com/vantagelab/termlens/internal/intelligence/embedding"
	"github.com/vantagelab/termlens/pkg/errors"
)

// fakeEmbedder serves vectors from a fixed table; terms missing from the
// table count as embedding failures.
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) EmbedAll(_ context.Context, records []term.Record) (*embedding.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := &embedding.Result{}
	for _, rec := range records {
		vec, ok := f.vectors[rec.Term]
		if !ok {
			res.Failed = append(res.Failed, rec)
			continue
		}
		rec.Embedding = vec
		res.Embedded = append(res.Embedded, rec)
	}
	res.ProviderCalls = (len(records) + embedding.BatchSize - 1) / embedding.BatchSize
	return res, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

type fakeAnnotator struct {
	fail  bool
	calls int
}

func (f *fakeAnnotator) Annotate(_ context.Context, terms []string, _ cluster.Metrics, _ []cluster.Tag) (*annotator.Annotation, error) {
	f.calls++
	if f.fail {
		return nil, errors.AnnotationUnavailable("model offline")
	}
	return &annotator.Annotation{
		Title:      "Cluster of " + terms[0],
		Summary:    "test summary",
		Confidence: 0.8,
		Tags:       []cluster.Tag{{Category: "intent", Value: "purchase", Confidence: 0.8}},
	}, nil
}

func day(n int) time.Time {
	return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func accessoryVectors() map[string][]float64 {
	return map[string][]float64{
		"wireless mouse":    {1, 0.01},
		"wireless keyboard": {1, 0.02},
	}
}

func accessoryRecords() []term.Record {
	return []term.Record{
		{Term: "wireless mouse", Volume: 1000, Growth: 0.2, Competition: 30,
			Attributes: map[string]string{"function": "input"}},
		{Term: "wireless keyboard", Volume: 800, Growth: 0.1, Competition: 40,
			Attributes: map[string]string{"function": "input"}},
	}
}

func TestPipelineRun(t *testing.T) {
	ann := &fakeAnnotator{}
	p := NewPipeline(PipelineDeps{
		Embedder:  &fakeEmbedder{vectors: accessoryVectors()},
		Annotator: ann,
	})

	res, err := p.Run(context.Background(), accessoryRecords(), nil)
	require.NoError(t, err)

	require.Len(t, res.Clusters, 1)
	c := res.Clusters[0]
	assert.Equal(t, cluster.Score(1800, 0.15, 35), c.Score)
	assert.Equal(t, "Cluster of wireless mouse", c.Title)
	assert.Equal(t, "test summary", c.Summary)

	// Pattern tag from the shared attribute plus the annotator's tag.
	var categories []string
	for _, tag := range c.Tags {
		categories = append(categories, tag.Category+"/"+tag.Value)
	}
	assert.Contains(t, categories, "function/input")
	assert.Contains(t, categories, "intent/purchase")

	// No snapshots: exact empty temporal defaults.
	require.NotNil(t, c.Temporal)
	assert.Equal(t, 1.0, c.Temporal.Stability)
	assert.Equal(t, 0.0, c.Temporal.EmergenceScore)
	assert.Empty(t, c.Temporal.VolumeTrend)

	assert.False(t, res.Partial())
	assert.Empty(t, res.DroppedTerms)
	assert.Len(t, res.EmbeddedTerms, 2)
	assert.Equal(t, 1, ann.calls)
}

func TestPipelineDropsFailedEmbeddings(t *testing.T) {
	p := NewPipeline(PipelineDeps{
		Embedder:  &fakeEmbedder{vectors: accessoryVectors()},
		Annotator: &fakeAnnotator{},
	})

	records := append(accessoryRecords(), term.Record{Term: "unembeddable", Volume: 9999})
	res, err := p.Run(context.Background(), records, nil)
	require.NoError(t, err)

	require.Len(t, res.DroppedTerms, 1)
	assert.Equal(t, "unembeddable", res.DroppedTerms[0].Term)
	assert.True(t, res.Partial())

	// The dropped term influences no cluster.
	for _, c := range res.Clusters {
		assert.NotContains(t, c.TermTexts(), "unembeddable")
	}
}

func TestPipelineAnnotationFailureDegrades(t *testing.T) {
	p := NewPipeline(PipelineDeps{
		Embedder:  &fakeEmbedder{vectors: accessoryVectors()},
		Annotator: &fakeAnnotator{fail: true},
	})

	res, err := p.Run(context.Background(), accessoryRecords(), nil)
	require.NoError(t, err)

	require.Len(t, res.Clusters, 1)
	c := res.Clusters[0]
	assert.Equal(t, "Cluster: wireless mouse", c.Title)
	assert.NotEmpty(t, c.Summary)
	assert.Equal(t, 1, res.AnnotationFailures)
	assert.True(t, res.Partial())
}

func TestPipelineWithoutAnnotator(t *testing.T) {
	p := NewPipeline(PipelineDeps{Embedder: &fakeEmbedder{vectors: accessoryVectors()}})

	res, err := p.Run(context.Background(), accessoryRecords(), nil)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Equal(t, "Cluster: wireless mouse", res.Clusters[0].Title)
	assert.Zero(t, res.AnnotationFailures)
}

func TestPipelineEmptyInput(t *testing.T) {
	p := NewPipeline(PipelineDeps{Embedder: &fakeEmbedder{}})
	_, err := p.Run(context.Background(), nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInsufficientData))
}

func TestPipelineAllEmbeddingsFail(t *testing.T) {
	p := NewPipeline(PipelineDeps{Embedder: &fakeEmbedder{vectors: map[string][]float64{}}})
	_, err := p.Run(context.Background(), accessoryRecords(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInsufficientData))
}

func TestPipelineEmbedderErrorPropagates(t *testing.T) {
	p := NewPipeline(PipelineDeps{
		Embedder: &fakeEmbedder{err: errors.EmbeddingUnavailable("provider down")},
	})
	_, err := p.Run(context.Background(), accessoryRecords(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingUnavailable))
}

func TestPipelineTracksHistory(t *testing.T) {
	p := NewPipeline(PipelineDeps{Embedder: &fakeEmbedder{vectors: accessoryVectors()}})

	snapshots := []term.Snapshot{
		{Timestamp: day(0), Terms: []term.Record{{Term: "wireless mouse", Volume: 500, Embedding: []float64{1, 0.01}}}},
		{Timestamp: day(7), Terms: []term.Record{{Term: "wireless mouse", Volume: 900, Embedding: []float64{1, 0.01}}}},
	}
	res, err := p.Run(context.Background(), accessoryRecords(), snapshots)
	require.NoError(t, err)

	require.Len(t, res.Clusters, 1)
	c := res.Clusters[0]
	require.Len(t, c.History, 2)
	assert.InDelta(t, 400, c.Temporal.GrowthRate, 1e-9)
	assert.Equal(t, 1.0, c.Temporal.Stability)
}
