// Package annotator integrates the external language model that titles,
// summarizes, and tags clusters. Annotation is best-effort enrichment: every
// failure path degrades to placeholder output instead of aborting a run.
package annotator

import (
	"context"
	"fmt"

	"github.com/vantagelab/termlens/internal/domain/cluster"
)

// Annotation is the semantic enrichment produced for one cluster.
type Annotation struct {
	Title      string        `json:"title"`
	Summary    string        `json:"summary"`
	Tags       []cluster.Tag `json:"tags,omitempty"`
	Confidence float64       `json:"confidence"`
}

// Annotator produces cluster annotations via an external language model.
type Annotator interface {
	// Annotate titles and summarizes a cluster from its term texts and
	// aggregate metrics. Existing tags, when passed, give the model context
	// and may be refined in the response.
	Annotate(ctx context.Context, terms []string, metrics cluster.Metrics, tags []cluster.Tag) (*Annotation, error)
}

// Degraded returns the placeholder annotation applied when the external
// model is unavailable: a usable title derived from the cluster's leading
// term, no tags, zero confidence.
func Degraded(terms []string) *Annotation {
	title := "Unlabeled cluster"
	if len(terms) > 0 {
		title = fmt.Sprintf("Cluster: %s", terms[0])
	}
	return &Annotation{
		Title:      title,
		Summary:    fmt.Sprintf("Automatic grouping of %d related search terms.", len(terms)),
		Confidence: 0,
	}
}
