package analysis

import (
	"context"

	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/internal/intelligence/annotator"
	"github.com/vantagelab/termlens/internal/intelligence/embedding"
	"github.com/vantagelab/termlens/pkg/errors"
)

// ---------------------------------------------------------------------------
// Port interfaces
// ---------------------------------------------------------------------------

// Embedder vectorizes term records. Implemented by embedding.Batcher;
// faked in tests to keep the pipeline deterministic and network-free.
type Embedder interface {
	EmbedAll(ctx context.Context, records []term.Record) (*embedding.Result, error)
	Dimensions() int
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// PipelineDeps holds the pipeline's collaborators. Annotator and Describer
// may be nil, which disables the respective enrichment.
type PipelineDeps struct {
	Embedder  Embedder
	Annotator annotator.Annotator
	Describer cluster.PatternDescriber
	Logger    logging.Logger
}

// PipelineResult is everything one pipeline run produced.
type PipelineResult struct {
	// Clusters holds every hierarchy node, sorted by descending opportunity
	// score, fully enriched.
	Clusters []*cluster.Cluster

	// EmbeddedTerms is the record set that entered clustering, vectors
	// attached. It is archived as the snapshot for future temporal runs.
	EmbeddedTerms []term.Record

	// DroppedTerms were excluded because embedding failed after retries.
	DroppedTerms []term.Record

	// NoiseTerms were excluded by density grouping as sub-threshold noise.
	NoiseTerms []term.Record

	// CacheHits and ProviderCalls mirror the embedding stage counters.
	CacheHits     int
	ProviderCalls int

	// AnnotationFailures counts clusters that fell back to placeholder
	// annotations.
	AnnotationFailures int
}

// Partial reports whether the run degraded anywhere: dropped terms or
// failed annotations.
func (r *PipelineResult) Partial() bool {
	return len(r.DroppedTerms) > 0 || r.AnnotationFailures > 0
}

// Pipeline runs the full analysis over one term batch: embedding, density
// clustering, hierarchical merging, scoring, temporal tracking, pattern
// analysis, and semantic annotation. The math stages are synchronous and
// in-memory; only embedding and annotation touch the network.
type Pipeline struct {
	embedder  Embedder
	annotator annotator.Annotator
	clusterer *cluster.DensityClusterer
	merger    *cluster.HierarchicalMerger
	tracker   *cluster.TemporalTracker
	patterns  *cluster.PatternAnalyzer
	logger    logging.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("pipeline")
	return &Pipeline{
		embedder:  deps.Embedder,
		annotator: deps.Annotator,
		clusterer: cluster.NewDensityClusterer(logger),
		merger:    cluster.NewHierarchicalMerger(logger),
		tracker:   cluster.NewTemporalTracker(logger),
		patterns:  cluster.NewPatternAnalyzer(deps.Describer, logger),
		logger:    logger,
	}
}

// Run executes the pipeline on records against the given historical
// snapshots. Failures past the embedding stage never abort the run; they
// degrade individual clusters and are reflected in the result.
func (p *Pipeline) Run(ctx context.Context, records []term.Record, snapshots []term.Snapshot) (*PipelineResult, error) {
	if len(records) == 0 {
		return nil, errors.InsufficientData("no terms to analyze")
	}

	embRes, err := p.embedder.EmbedAll(ctx, records)
	if err != nil {
		return nil, err
	}
	if err := term.ValidateDimensions(embRes.Embedded, p.embedder.Dimensions()); err != nil {
		return nil, err
	}

	res := &PipelineResult{
		EmbeddedTerms: embRes.Embedded,
		DroppedTerms:  embRes.Failed,
		CacheHits:     embRes.CacheHits,
		ProviderCalls: embRes.ProviderCalls,
	}
	if len(embRes.Embedded) == 0 {
		return nil, errors.InsufficientData("no terms survived embedding")
	}
	if len(embRes.Failed) > 0 {
		p.logger.Warn("terms dropped after embedding retries",
			logging.Int("dropped", len(embRes.Failed)),
			logging.Int("embedded", len(embRes.Embedded)))
	}

	arena := cluster.NewArena()
	leaves, noise := p.clusterer.Cluster(arena, embRes.Embedded)
	res.NoiseTerms = noise

	res.Clusters = p.merger.Merge(arena, leaves)

	for _, c := range res.Clusters {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "analysis cancelled")
		}
		p.tracker.Track(c, snapshots)
		if !p.enrich(ctx, c) {
			res.AnnotationFailures++
		}
	}

	p.logger.Info("analysis pipeline complete",
		logging.Int("terms", len(records)),
		logging.Int("clusters", len(res.Clusters)),
		logging.Int("dropped", len(res.DroppedTerms)),
		logging.Int("noise", len(res.NoiseTerms)),
		logging.Int("annotation_failures", res.AnnotationFailures))
	return res, nil
}

// enrich attaches pattern tags and the semantic annotation to one cluster,
// degrading to placeholder text on annotator failure. It reports false when
// the annotation degraded.
func (p *Pipeline) enrich(ctx context.Context, c *cluster.Cluster) bool {
	groups, _ := p.patterns.Analyze(ctx, c)
	for _, g := range groups {
		c.Tags = append(c.Tags, cluster.Tag{
			Category:   g.Key,
			Value:      g.Value,
			Confidence: g.Confidence,
		})
	}

	texts := c.TermTexts()
	if p.annotator == nil {
		ann := annotator.Degraded(texts)
		c.Title, c.Summary = ann.Title, ann.Summary
		return true
	}

	ann, err := p.annotator.Annotate(ctx, texts, c.Aggregate(), c.Tags)
	if err != nil {
		p.logger.Warn("annotation failed, using placeholder",
			logging.Int("cluster_id", c.ID),
			logging.Err(err))
		ann = annotator.Degraded(texts)
		c.Title, c.Summary = ann.Title, ann.Summary
		return false
	}
	c.Title, c.Summary = ann.Title, ann.Summary
	c.Tags = append(c.Tags, ann.Tags...)
	return true
}
