package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

// TermRepository persists uploaded term batches.
type TermRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ term.Repository = (*TermRepository)(nil)

// NewTermRepository creates a TermRepository.
func NewTermRepository(pool *pgxpool.Pool, logger logging.Logger) *TermRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TermRepository{pool: pool, logger: logger.Named("term_repo")}
}

// SaveBatch stores the batch header and every record in one transaction.
func (r *TermRepository) SaveBatch(ctx context.Context, batchID string, records []term.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "begin batch transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO term_batches (batch_id) VALUES ($1) ON CONFLICT DO NOTHING`, batchID); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert batch")
	}

	for i := range records {
		rec := &records[i]
		embedding, attrs, err := marshalRecordJSON(rec)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO term_records
				(batch_id, term, volume, click_share, growth, competition,
				 units_sold, conversion_rate, embedding, attributes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (batch_id, term) DO UPDATE SET
				volume = EXCLUDED.volume,
				click_share = EXCLUDED.click_share,
				growth = EXCLUDED.growth,
				competition = EXCLUDED.competition,
				units_sold = EXCLUDED.units_sold,
				conversion_rate = EXCLUDED.conversion_rate,
				embedding = EXCLUDED.embedding,
				attributes = EXCLUDED.attributes`,
			batchID, rec.Term, rec.Volume, rec.ClickShare, rec.Growth, rec.Competition,
			rec.UnitsSold, rec.ConversionRate, embedding, attrs)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert term record").WithDetail(rec.Term)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "commit batch")
	}
	r.logger.Debug("term batch stored",
		logging.String("batch_id", batchID),
		logging.Int("records", len(records)))
	return nil
}

// LoadBatch returns all records of a batch in insertion order.
func (r *TermRepository) LoadBatch(ctx context.Context, batchID string) ([]term.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT term, volume, click_share, growth, competition,
		       units_sold, conversion_rate, embedding, attributes
		FROM term_records
		WHERE batch_id = $1
		ORDER BY id`, batchID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query term batch")
	}
	defer rows.Close()

	var records []term.Record
	for rows.Next() {
		var (
			rec       term.Record
			embedding []byte
			attrs     []byte
		)
		if err := rows.Scan(&rec.Term, &rec.Volume, &rec.ClickShare, &rec.Growth,
			&rec.Competition, &rec.UnitsSold, &rec.ConversionRate, &embedding, &attrs); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan term record")
		}
		if err := unmarshalRecordJSON(&rec, embedding, attrs); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate term batch")
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeExportNotFound, "term batch not found").WithDetail(batchID)
	}
	return records, nil
}

func marshalRecordJSON(rec *term.Record) (embedding, attrs []byte, err error) {
	if rec.HasEmbedding() {
		if embedding, err = json.Marshal(rec.Embedding); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal embedding")
		}
	}
	if len(rec.Attributes) > 0 {
		if attrs, err = json.Marshal(rec.Attributes); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal attributes")
		}
	}
	return embedding, attrs, nil
}

func unmarshalRecordJSON(rec *term.Record, embedding, attrs []byte) error {
	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &rec.Embedding); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal embedding")
		}
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal attributes")
		}
	}
	return nil
}
