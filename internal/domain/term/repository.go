package term

import (
	"context"
	"time"
)

// Repository loads and stores term batches for analysis runs. Implemented by
// the postgres repository; the engine itself never touches storage.
type Repository interface {
	// SaveBatch persists the records of one uploaded export under batchID.
	SaveBatch(ctx context.Context, batchID string, records []Record) error

	// LoadBatch returns the records of a previously stored export.
	LoadBatch(ctx context.Context, batchID string) ([]Record, error)
}

// SnapshotRepository loads historical snapshots for temporal tracking.
// Snapshots are returned in ascending timestamp order; the tracker re-sorts
// defensively but implementations should not rely on that.
type SnapshotRepository interface {
	// ListSnapshots returns all snapshots captured before cutoff.
	ListSnapshots(ctx context.Context, cutoff time.Time) ([]Snapshot, error)

	// SaveSnapshot archives the current batch as a snapshot for future runs.
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}
