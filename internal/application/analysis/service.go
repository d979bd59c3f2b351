package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/vantagelab/termlens/internal/infrastructure/monitoring/prometheus"
	"github.com/vantagelab/termlens/pkg/errors"
)

// ---------------------------------------------------------------------------
// Port interfaces
// ---------------------------------------------------------------------------

// EventPublisher announces run lifecycle events. Implemented by the Kafka
// producer; publishing a request is fire-and-forget from the API's view.
type EventPublisher interface {
	PublishAnalysisRequested(ctx context.Context, runID, batchID string) error
	PublishAnalysisCompleted(ctx context.Context, runID string, partial bool) error
	PublishAnalysisFailed(ctx context.Context, runID, reason string) error
}

// ClusterIndexer pushes finished clusters into the search index. Indexing is
// best-effort enrichment of the read path; failures degrade, never abort.
type ClusterIndexer interface {
	IndexClusters(ctx context.Context, runID string, clusters []*cluster.Cluster) error
}

// VectorStore archives term vectors for similarity lookups across runs.
type VectorStore interface {
	UpsertTermVectors(ctx context.Context, batchID string, records []term.Record) error
}

// ExportStore archives the full run result as an object for download.
type ExportStore interface {
	StoreResult(ctx context.Context, runID string, clusters []*cluster.Cluster) error
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the application-level entry point for analyses: Submit on the
// API side, Execute on the worker side, and the read operations both share.
type Service interface {
	// Submit stores the uploaded batch, creates a pending run, and fires
	// the request event. It returns quickly; the worker does the heavy
	// lifting.
	Submit(ctx context.Context, records []term.Record) (*Run, error)

	// Execute runs the pipeline for a pending run. Called by the worker.
	Execute(ctx context.Context, runID string) (*Run, error)

	// GetRun returns one run by id.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns returns the most recent runs.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// ListClusters returns the enriched clusters of a finished run.
	ListClusters(ctx context.Context, runID string) ([]*cluster.Cluster, error)
}

// Deps holds the service's collaborators. Indexer, Vectors, Exports, and
// Metrics are optional; the service degrades without them.
type Deps struct {
	Pipeline  *Pipeline
	Terms     term.Repository
	Snapshots term.SnapshotRepository
	Runs      RunRepository
	Clusters  ClusterRepository
	Events    EventPublisher
	Indexer   ClusterIndexer
	Vectors   VectorStore
	Exports   ExportStore
	Metrics   *prommetrics.Metrics
	Logger    logging.Logger
}

type serviceImpl struct {
	pipeline  *Pipeline
	terms     term.Repository
	snapshots term.SnapshotRepository
	runs      RunRepository
	clusters  ClusterRepository
	events    EventPublisher
	indexer   ClusterIndexer
	vectors   VectorStore
	exports   ExportStore
	metrics   *prommetrics.Metrics
	logger    logging.Logger
	now       func() time.Time
}

// NewService creates an analysis Service.
func NewService(deps Deps) Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		pipeline:  deps.Pipeline,
		terms:     deps.Terms,
		snapshots: deps.Snapshots,
		runs:      deps.Runs,
		clusters:  deps.Clusters,
		events:    deps.Events,
		indexer:   deps.Indexer,
		vectors:   deps.Vectors,
		exports:   deps.Exports,
		metrics:   deps.Metrics,
		logger:    logger.Named("analysis"),
		now:       time.Now,
	}
}

func (s *serviceImpl) Submit(ctx context.Context, records []term.Record) (*Run, error) {
	if len(records) == 0 {
		return nil, errors.InsufficientData("batch contains no terms")
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, err
		}
	}

	batchID := uuid.NewString()
	if err := s.terms.SaveBatch(ctx, batchID, records); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "store term batch")
	}

	run := &Run{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		Status:    RunStatusPending,
		TermCount: len(records),
		CreatedAt: s.now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "create run")
	}

	if err := s.events.PublishAnalysisRequested(ctx, run.ID, batchID); err != nil {
		// The run stays pending; a requeue or manual trigger can pick it up.
		s.logger.Error("publish analysis request failed",
			logging.String("run_id", run.ID),
			logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "enqueue analysis")
	}

	s.logger.Info("analysis submitted",
		logging.String("run_id", run.ID),
		logging.String("batch_id", batchID),
		logging.Int("terms", len(records)))
	return run, nil
}

func (s *serviceImpl) Execute(ctx context.Context, runID string) (*Run, error) {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetail(runID)
	}
	if run.Status.IsTerminal() {
		return nil, errors.New(errors.ErrCodeRunAlreadyActive, "run already finished").WithDetail(runID)
	}

	started := s.now()
	run.Status = RunStatusRunning
	run.StartedAt = &started
	if err := s.runs.Update(ctx, run); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "mark run running")
	}

	records, err := s.terms.LoadBatch(ctx, run.BatchID)
	if err != nil {
		return s.failRun(ctx, run, errors.Wrap(err, errors.ErrCodeDatabaseError, "load term batch"))
	}

	snapshots, err := s.snapshots.ListSnapshots(ctx, started)
	if err != nil {
		// History is enrichment; run without it.
		s.logger.Warn("snapshot listing failed, running without history",
			logging.String("run_id", run.ID),
			logging.Err(err))
		snapshots = nil
	}

	result, err := s.pipeline.Run(ctx, records, snapshots)
	if err != nil {
		return s.failRun(ctx, run, err)
	}

	if err := s.clusters.SaveAll(ctx, run.ID, result.Clusters); err != nil {
		return s.failRun(ctx, run, errors.Wrap(err, errors.ErrCodeDatabaseError, "store clusters"))
	}

	s.archive(ctx, run, result)

	completed := s.now()
	run.Status = RunStatusCompleted
	if result.Partial() {
		run.Status = RunStatusCompletedPartial
	}
	run.CompletedAt = &completed
	run.DroppedTerms = len(result.DroppedTerms)
	run.NoiseTerms = len(result.NoiseTerms)
	run.ClusterCount = len(result.Clusters)
	if err := s.runs.Update(ctx, run); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "finalize run")
	}

	s.observe(run, result, completed.Sub(started))
	if err := s.events.PublishAnalysisCompleted(ctx, run.ID, result.Partial()); err != nil {
		s.logger.Warn("publish completion failed", logging.String("run_id", run.ID), logging.Err(err))
	}

	s.logger.Info("analysis finished",
		logging.String("run_id", run.ID),
		logging.String("status", string(run.Status)),
		logging.Int("clusters", run.ClusterCount),
		logging.Duration("took", completed.Sub(started)))
	return run, nil
}

// archive pushes the run's output into the best-effort stores: the snapshot
// archive for future temporal runs, the vector store, the search index, and
// the object export.
func (s *serviceImpl) archive(ctx context.Context, run *Run, result *PipelineResult) {
	snap := term.Snapshot{Timestamp: s.now(), Terms: result.EmbeddedTerms}
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Warn("snapshot archive failed", logging.String("run_id", run.ID), logging.Err(err))
	}
	if s.vectors != nil {
		if err := s.vectors.UpsertTermVectors(ctx, run.BatchID, result.EmbeddedTerms); err != nil {
			s.logger.Warn("vector archive failed", logging.String("run_id", run.ID), logging.Err(err))
		}
	}
	if s.indexer != nil {
		if err := s.indexer.IndexClusters(ctx, run.ID, result.Clusters); err != nil {
			s.logger.Warn("cluster indexing failed", logging.String("run_id", run.ID), logging.Err(err))
		}
	}
	if s.exports != nil {
		if err := s.exports.StoreResult(ctx, run.ID, result.Clusters); err != nil {
			s.logger.Warn("result export failed", logging.String("run_id", run.ID), logging.Err(err))
		}
	}
}

func (s *serviceImpl) observe(run *Run, result *PipelineResult, took time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RunsTotal.WithLabelValues(string(run.Status)).Inc()
	s.metrics.RunDuration.Observe(took.Seconds())
	s.metrics.ClustersPerRun.Observe(float64(run.ClusterCount))
	s.metrics.TermsDropped.Add(float64(run.DroppedTerms))
	s.metrics.NoiseTermsTotal.Add(float64(run.NoiseTerms))
	s.metrics.EmbeddingCacheHits.Add(float64(result.CacheHits))
}

func (s *serviceImpl) failRun(ctx context.Context, run *Run, cause error) (*Run, error) {
	completed := s.now()
	run.Status = RunStatusFailed
	run.CompletedAt = &completed
	run.Error = cause.Error()
	if err := s.runs.Update(ctx, run); err != nil {
		s.logger.Error("mark run failed", logging.String("run_id", run.ID), logging.Err(err))
	}
	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues(string(RunStatusFailed)).Inc()
	}
	if err := s.events.PublishAnalysisFailed(ctx, run.ID, cause.Error()); err != nil {
		s.logger.Warn("publish failure event failed", logging.String("run_id", run.ID), logging.Err(err))
	}
	s.logger.Error("analysis failed",
		logging.String("run_id", run.ID),
		logging.Err(cause))
	return run, cause
}

func (s *serviceImpl) GetRun(ctx context.Context, runID string) (*Run, error) {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetail(runID)
	}
	return run, nil
}

func (s *serviceImpl) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.runs.List(ctx, limit)
}

func (s *serviceImpl) ListClusters(ctx context.Context, runID string) ([]*cluster.Cluster, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.IsTerminal() || run.Status == RunStatusFailed {
		return nil, errors.New(errors.ErrCodeRunFailed, "run has no cluster output").WithDetail(string(run.Status))
	}
	return s.clusters.ListByRun(ctx, runID)
}
