package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantagelab/termlens/internal/application/analysis"
	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

// ClusterRepository persists the enriched cluster hierarchy of a run. The
// full node is stored as JSONB; level, score, and title are lifted into
// columns for ordering and filtering.
type ClusterRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ analysis.ClusterRepository = (*ClusterRepository)(nil)

// NewClusterRepository creates a ClusterRepository.
func NewClusterRepository(pool *pgxpool.Pool, logger logging.Logger) *ClusterRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ClusterRepository{pool: pool, logger: logger.Named("cluster_repo")}
}

func (r *ClusterRepository) SaveAll(ctx context.Context, runID string, clusters []*cluster.Cluster) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "begin cluster transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM run_clusters WHERE run_id = $1`, runID); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "clear previous clusters")
	}

	for _, c := range clusters {
		payload, err := json.Marshal(c)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "marshal cluster")
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO run_clusters (run_id, cluster_id, level, score, title, payload)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			runID, c.ID, c.Level, c.Score, c.Title, payload)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert cluster")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "commit clusters")
	}
	r.logger.Debug("clusters stored",
		logging.String("run_id", runID),
		logging.Int("count", len(clusters)))
	return nil
}

// ListByRun returns a run's clusters sorted by descending score, matching
// the pipeline's output order.
func (r *ClusterRepository) ListByRun(ctx context.Context, runID string) ([]*cluster.Cluster, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT payload FROM run_clusters
		WHERE run_id = $1
		ORDER BY score DESC, cluster_id ASC`, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query clusters")
	}
	defer rows.Close()

	var clusters []*cluster.Cluster
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan cluster")
		}
		var c cluster.Cluster
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal cluster")
		}
		clusters = append(clusters, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate clusters")
	}
	return clusters, nil
}
