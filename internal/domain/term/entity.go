// Package term defines the search-term input entities consumed by the
// clustering engine, plus the repository ports through which term batches and
// historical snapshots are loaded and stored.
package term

import (
	"time"

	"github.com/vantagelab/termlens/pkg/errors"
)

// Record is one ingested search term with its market metrics. Records are
// created at ingestion time and read-only afterwards; they belong exclusively
// to the pipeline run that loaded them. Term uniqueness within a batch is the
// caller's responsibility — the engine does not deduplicate.
type Record struct {
	// Term is the raw search-term text, unique within a batch.
	Term string `json:"term"`

	// Volume is the search volume, ≥ 0.
	Volume float64 `json:"volume"`

	// ClickShare is the share of clicks captured, in [0,1]. Defaults to 0.
	ClickShare float64 `json:"click_share,omitempty"`

	// Growth is a fractional growth rate; may be negative.
	Growth float64 `json:"growth,omitempty"`

	// Competition is an unnormalized competition figure on a 0–100 scale.
	Competition float64 `json:"competition,omitempty"`

	// UnitsSold and ConversionRate feed the extended opportunity scorer.
	// They are zero when the export carries no sales data.
	UnitsSold      float64 `json:"units_sold,omitempty"`
	ConversionRate float64 `json:"conversion_rate,omitempty"`

	// Embedding is the term's vector, produced once and then immutable.
	// Dimensionality must be uniform across a batch.
	Embedding []float64 `json:"embedding,omitempty"`

	// Attributes carries categorical tags (function/format/value style keys).
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Validate checks the record's metric invariants at the ingestion boundary.
// Rejecting a bad record here keeps negative volumes and out-of-range shares
// from skewing opportunity scores deep inside the pipeline.
func (r *Record) Validate() error {
	if r.Term == "" {
		return errors.InvalidParam("term text must not be empty")
	}
	if r.Volume < 0 {
		return errors.InvalidParam("volume must be >= 0").WithDetail(r.Term)
	}
	if r.ClickShare < 0 || r.ClickShare > 1 {
		return errors.InvalidParam("click_share must be in [0,1]").WithDetail(r.Term)
	}
	if r.ConversionRate < 0 || r.ConversionRate > 1 {
		return errors.InvalidParam("conversion_rate must be in [0,1]").WithDetail(r.Term)
	}
	if r.UnitsSold < 0 {
		return errors.InvalidParam("units_sold must be >= 0").WithDetail(r.Term)
	}
	if r.Competition < 0 {
		return errors.InvalidParam("competition must be >= 0").WithDetail(r.Term)
	}
	return nil
}

// HasEmbedding reports whether the record carries a non-empty vector.
func (r *Record) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

// HasSalesData reports whether the record carries any extended sales metrics.
func (r *Record) HasSalesData() bool {
	return r.UnitsSold > 0 || r.ConversionRate > 0
}

// Snapshot is one historical batch of term records, embedded at the point in
// time it was captured.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Terms     []Record  `json:"terms"`
}

// ValidateDimensions checks that every embedded record in records shares the
// dimensionality dim. Mixing dimensionalities within one run is a caller
// error, reported immediately rather than surfacing as bad geometry later.
func ValidateDimensions(records []Record, dim int) error {
	for i := range records {
		if !records[i].HasEmbedding() {
			continue
		}
		if len(records[i].Embedding) != dim {
			return errors.New(errors.ErrCodeEmbeddingDimensionMismatch,
				"inconsistent embedding dimensionality").
				WithDetail(records[i].Term)
		}
	}
	return nil
}
