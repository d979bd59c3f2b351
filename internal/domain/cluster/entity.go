// Package cluster implements the TermLens clustering and trend-analysis
// engine: density-based grouping of embedded search terms, agglomerative
// hierarchy construction, opportunity scoring, temporal evolution tracking,
// and categorical pattern analysis. Everything here is synchronous, in-memory
// computation; external AI calls happen behind ports defined by the callers.
package cluster

import (
	"time"

	"github.com/vantagelab/termlens/internal/domain/term"
)

// NoChild marks an absent child reference on a leaf cluster.
const NoChild = -1

// Tag is a descriptive category/value pair attached by the pattern analyzer
// or the semantic annotator. Tags are never used as clustering keys.
type Tag struct {
	Category   string  `json:"category"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
}

// HistoryPoint is one matched historical snapshot of a cluster. A cluster's
// history is ordered by ascending timestamp and never reordered once built.
type HistoryPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Volume      float64   `json:"volume"`
	ClickShare  float64   `json:"click_share"`
	Competition float64   `json:"competition"`
	Terms       []string  `json:"terms"`
}

// TemporalMetrics is derived from a cluster's history and immutable once
// computed.
type TemporalMetrics struct {
	// GrowthRate is the OLS slope of volume over the history index.
	GrowthRate float64 `json:"growth_rate"`

	// VolumeTrend, ClickShareTrend and CompetitionTrend are window-3 moving
	// averages, each the same length as the history.
	VolumeTrend      []float64 `json:"volume_trend"`
	ClickShareTrend  []float64 `json:"click_share_trend"`
	CompetitionTrend []float64 `json:"competition_trend"`

	// Stability is the average term-set overlap between consecutive history
	// points, in [0,1]. A cluster with fewer than two points is defined as
	// maximally stable.
	Stability float64 `json:"stability"`

	// EmergenceScore is in [0,1]; higher means the cluster is growing and
	// destabilizing relative to its history.
	EmergenceScore float64 `json:"emergence_score"`
}

// Cluster is one node of the merge hierarchy. Level-0 clusters come from the
// density clusterer; higher levels are produced by the hierarchical merger.
// Clusters live in an Arena and reference their children by integer id, which
// keeps the tree acyclic and trivially serializable.
type Cluster struct {
	// ID is the arena index of this cluster, unique within one run.
	ID int `json:"id"`

	// Terms is the non-empty member list, unique by term text.
	Terms []term.Record `json:"terms"`

	// Level is 0 for density-produced leaves and increments by one at each
	// merge.
	Level int `json:"level"`

	// Similarity is the centroid cosine similarity that triggered this
	// cluster's creation; 1 for level-0 clusters.
	Similarity float64 `json:"similarity"`

	// LeftChild and RightChild are arena ids, NoChild for leaves.
	LeftChild  int `json:"left_child"`
	RightChild int `json:"right_child"`

	// Score is the opportunity score in [0,100], set by the merger.
	Score int `json:"score"`

	// Enrichment fields, attached after construction as the respective
	// steps complete. Terms and children are never mutated.
	History  []HistoryPoint   `json:"history,omitempty"`
	Temporal *TemporalMetrics `json:"temporal,omitempty"`
	Tags     []Tag            `json:"tags,omitempty"`
	Title    string           `json:"title,omitempty"`
	Summary  string           `json:"summary,omitempty"`

	centroid []float64
}

// IsLeaf reports whether the cluster came straight from density grouping.
func (c *Cluster) IsLeaf() bool {
	return c.LeftChild == NoChild && c.RightChild == NoChild
}

// Centroid returns the element-wise mean of the member embeddings, cached
// after the first call. A single-term cluster's centroid equals that term's
// embedding.
func (c *Cluster) Centroid() []float64 {
	if c.centroid != nil {
		return c.centroid
	}
	vectors := make([][]float64, 0, len(c.Terms))
	for i := range c.Terms {
		vectors = append(vectors, c.Terms[i].Embedding)
	}
	c.centroid = Centroid(vectors)
	return c.centroid
}

// TermTexts returns the member term strings in member order.
func (c *Cluster) TermTexts() []string {
	out := make([]string, len(c.Terms))
	for i := range c.Terms {
		out[i] = c.Terms[i].Term
	}
	return out
}

// Metrics is the aggregate of a cluster's member metrics, the input to the
// opportunity scorer.
type Metrics struct {
	TotalVolume    float64
	AvgGrowth      float64
	AvgCompetition float64
	AvgClickShare  float64

	TotalUnitsSold float64
	AvgUnitsSold   float64
	AvgConversion  float64

	// HasSalesData selects the extended scorer variant.
	HasSalesData bool
}

// Aggregate computes the scoring aggregates over the cluster's members.
func (c *Cluster) Aggregate() Metrics {
	var m Metrics
	n := float64(len(c.Terms))
	if n == 0 {
		return m
	}
	for i := range c.Terms {
		t := &c.Terms[i]
		m.TotalVolume += t.Volume
		m.AvgGrowth += t.Growth
		m.AvgCompetition += t.Competition
		m.AvgClickShare += t.ClickShare
		m.TotalUnitsSold += t.UnitsSold
		m.AvgConversion += t.ConversionRate
		if t.HasSalesData() {
			m.HasSalesData = true
		}
	}
	m.AvgGrowth /= n
	m.AvgCompetition /= n
	m.AvgClickShare /= n
	m.AvgUnitsSold = m.TotalUnitsSold / n
	m.AvgConversion /= n
	return m
}

// Arena owns every cluster constructed during one pipeline run. Integer ids
// index directly into the arena, so merge records {id, leftChild, rightChild}
// fully describe the hierarchy without pointer cycles.
type Arena struct {
	clusters []*Cluster
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// NewLeaf appends a level-0 cluster with similarity 1.
func (a *Arena) NewLeaf(terms []term.Record) *Cluster {
	c := &Cluster{
		ID:         len(a.clusters),
		Terms:      terms,
		Level:      0,
		Similarity: 1,
		LeftChild:  NoChild,
		RightChild: NoChild,
	}
	a.clusters = append(a.clusters, c)
	return c
}

// Merge appends a new cluster combining left and right. Its level is one
// above the deeper child and its similarity is the centroid cosine that
// triggered the merge. Term order is left's members followed by right's.
func (a *Arena) Merge(left, right *Cluster, similarity float64) *Cluster {
	terms := make([]term.Record, 0, len(left.Terms)+len(right.Terms))
	terms = append(terms, left.Terms...)
	terms = append(terms, right.Terms...)

	level := left.Level
	if right.Level > level {
		level = right.Level
	}

	c := &Cluster{
		ID:         len(a.clusters),
		Terms:      terms,
		Level:      level + 1,
		Similarity: similarity,
		LeftChild:  left.ID,
		RightChild: right.ID,
	}
	a.clusters = append(a.clusters, c)
	return c
}

// Get returns the cluster with the given id, or nil when out of range.
func (a *Arena) Get(id int) *Cluster {
	if id < 0 || id >= len(a.clusters) {
		return nil
	}
	return a.clusters[id]
}

// All returns every cluster constructed so far, in creation order.
func (a *Arena) All() []*Cluster {
	out := make([]*Cluster, len(a.clusters))
	copy(out, a.clusters)
	return out
}

// Len returns the number of clusters in the arena.
func (a *Arena) Len() int {
	return len(a.clusters)
}
