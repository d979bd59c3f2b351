package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

// SnapshotRepository archives embedded term batches for temporal tracking.
type SnapshotRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ term.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool, logger logging.Logger) *SnapshotRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SnapshotRepository{pool: pool, logger: logger.Named("snapshot_repo")}
}

// ListSnapshots returns snapshots captured before cutoff, oldest first. The
// ascending order matters to the temporal tracker.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, cutoff time.Time) ([]term.Snapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT captured_at, terms
		FROM term_snapshots
		WHERE captured_at < $1
		ORDER BY captured_at ASC`, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query snapshots")
	}
	defer rows.Close()

	var snapshots []term.Snapshot
	for rows.Next() {
		var (
			snap term.Snapshot
			raw  []byte
		)
		if err := rows.Scan(&snap.Timestamp, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan snapshot")
		}
		if err := json.Unmarshal(raw, &snap.Terms); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal snapshot terms")
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate snapshots")
	}
	return snapshots, nil
}

// SaveSnapshot archives one snapshot.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap term.Snapshot) error {
	raw, err := json.Marshal(snap.Terms)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal snapshot terms")
	}
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO term_snapshots (captured_at, terms) VALUES ($1, $2)`,
		snap.Timestamp, raw); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert snapshot")
	}
	r.logger.Debug("snapshot archived",
		logging.Int("terms", len(snap.Terms)))
	return nil
}
