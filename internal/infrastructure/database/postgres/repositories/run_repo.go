package repositories

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantagelab/termlens/internal/application/analysis"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

// RunRepository persists analysis runs.
type RunRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ analysis.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a RunRepository.
func NewRunRepository(pool *pgxpool.Pool, logger logging.Logger) *RunRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RunRepository{pool: pool, logger: logger.Named("run_repo")}
}

func (r *RunRepository) Create(ctx context.Context, run *analysis.Run) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO analysis_runs
			(id, batch_id, status, term_count, dropped_terms, noise_terms,
			 cluster_count, error, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.BatchID, string(run.Status), run.TermCount, run.DroppedTerms,
		run.NoiseTerms, run.ClusterCount, run.Error, run.CreatedAt, run.StartedAt, run.CompletedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert run")
	}
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run *analysis.Run) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE analysis_runs SET
			status = $2, term_count = $3, dropped_terms = $4, noise_terms = $5,
			cluster_count = $6, error = $7, started_at = $8, completed_at = $9
		WHERE id = $1`,
		run.ID, string(run.Status), run.TermCount, run.DroppedTerms, run.NoiseTerms,
		run.ClusterCount, run.Error, run.StartedAt, run.CompletedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "update run")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetail(run.ID)
	}
	return nil
}

func (r *RunRepository) Get(ctx context.Context, id string) (*analysis.Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, batch_id, status, term_count, dropped_terms, noise_terms,
		       cluster_count, error, created_at, started_at, completed_at
		FROM analysis_runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan run")
	}
	return run, nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]*analysis.Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, batch_id, status, term_count, dropped_terms, noise_terms,
		       cluster_count, error, created_at, started_at, completed_at
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query runs")
	}
	defer rows.Close()

	var runs []*analysis.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan run")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate runs")
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*analysis.Run, error) {
	var (
		run    analysis.Run
		status string
	)
	err := row.Scan(&run.ID, &run.BatchID, &status, &run.TermCount, &run.DroppedTerms,
		&run.NoiseTerms, &run.ClusterCount, &run.Error, &run.CreatedAt,
		&run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	run.Status = analysis.RunStatus(status)
	return &run, nil
}
