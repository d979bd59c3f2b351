// Package analysis orchestrates the clustering pipeline: run lifecycle
// management, the end-to-end pipeline itself, and the service that fronts
// both for the API server and the background worker.
package analysis

import (
	"context"
	"time"

	"github.com/vantagelab/termlens/internal/domain/cluster"
)

// RunStatus tracks an analysis run through its lifecycle.
type RunStatus string

const (
	RunStatusPending          RunStatus = "pending"
	RunStatusRunning          RunStatus = "running"
	RunStatusCompleted        RunStatus = "completed"
	RunStatusCompletedPartial RunStatus = "completed_partial"
	RunStatusFailed           RunStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusCompletedPartial || s == RunStatusFailed
}

// Run is one analysis of one uploaded term batch. A run is created pending,
// picked up by the worker, and finished in a terminal status; partial
// completion (some terms dropped or some enrichment degraded) is the
// expected common case, not an error.
type Run struct {
	ID      string    `json:"id"`
	BatchID string    `json:"batch_id"`
	Status  RunStatus `json:"status"`

	TermCount    int `json:"term_count"`
	DroppedTerms int `json:"dropped_terms,omitempty"`
	NoiseTerms   int `json:"noise_terms,omitempty"`
	ClusterCount int `json:"cluster_count,omitempty"`

	// Error holds the failure reason for failed runs.
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunRepository persists analysis runs.
type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
}

// ClusterRepository persists the enriched cluster output of a run.
type ClusterRepository interface {
	SaveAll(ctx context.Context, runID string, clusters []*cluster.Cluster) error
	ListByRun(ctx context.Context, runID string) ([]*cluster.Cluster, error)
}
