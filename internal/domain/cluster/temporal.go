package cluster

import (
	"sort"

	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
)

// TrackMatchThreshold is the minimum cosine similarity between a historical
// term's embedding and the cluster's current centroid for the term to count
// as part of the cluster at that point in time.
const TrackMatchThreshold = 0.7

// movingAverageWindow is the span of the simple moving average applied to
// history sequences. The window shrinks at the start of the sequence.
const movingAverageWindow = 3

// TemporalTracker matches a cluster against historical term snapshots and
// derives growth, trend, stability, and emergence metrics from the result.
type TemporalTracker struct {
	logger logging.Logger
}

// NewTemporalTracker constructs a TemporalTracker. A nil logger falls back to
// the no-op implementation.
func NewTemporalTracker(logger logging.Logger) *TemporalTracker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TemporalTracker{logger: logger}
}

// Track populates c.History and c.Temporal from snapshots. Snapshots are
// processed in ascending timestamp order regardless of input order. The
// cluster's term list is never modified.
func (t *TemporalTracker) Track(c *Cluster, snapshots []term.Snapshot) {
	centroid := c.Centroid()
	if centroid == nil {
		c.History = nil
		c.Temporal = emptyMetrics()
		return
	}

	ordered := append([]term.Snapshot(nil), snapshots...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	history := make([]HistoryPoint, 0, len(ordered))
	for _, snap := range ordered {
		point, matched := matchSnapshot(centroid, snap)
		if matched {
			history = append(history, point)
		}
	}

	c.History = history
	c.Temporal = computeMetrics(history)
	t.logger.Debug("temporal tracking complete",
		logging.Int("cluster_id", c.ID),
		logging.Int("snapshots", len(ordered)),
		logging.Int("history_points", len(history)))
}

// matchSnapshot selects the snapshot's terms whose embeddings sit within
// TrackMatchThreshold of the centroid and aggregates them into a
// HistoryPoint. The second return is false when nothing matched.
func matchSnapshot(centroid []float64, snap term.Snapshot) (HistoryPoint, bool) {
	var (
		volume         float64
		clickShareSum  float64
		competitionSum float64
		texts          []string
	)
	for _, rec := range snap.Terms {
		if !rec.HasEmbedding() {
			continue
		}
		if CosineSimilarity(centroid, rec.Embedding) < TrackMatchThreshold {
			continue
		}
		volume += rec.Volume
		clickShareSum += rec.ClickShare
		competitionSum += rec.Competition
		texts = append(texts, rec.Term)
	}
	if len(texts) == 0 {
		return HistoryPoint{}, false
	}
	n := float64(len(texts))
	return HistoryPoint{
		Timestamp:   snap.Timestamp,
		Volume:      volume,
		ClickShare:  clickShareSum / n,
		Competition: competitionSum / n,
		Terms:       texts,
	}, true
}

// emptyMetrics is the defined result for clusters with no meaningful
// history: maximally stable and non-emergent.
func emptyMetrics() *TemporalMetrics {
	return &TemporalMetrics{
		GrowthRate:       0,
		VolumeTrend:      []float64{},
		ClickShareTrend:  []float64{},
		CompetitionTrend: []float64{},
		Stability:        1,
		EmergenceScore:   0,
	}
}

func computeMetrics(history []HistoryPoint) *TemporalMetrics {
	if len(history) < 2 {
		return emptyMetrics()
	}

	volumes := make([]float64, len(history))
	clickShares := make([]float64, len(history))
	competitions := make([]float64, len(history))
	for i, p := range history {
		volumes[i] = p.Volume
		clickShares[i] = p.ClickShare
		competitions[i] = p.Competition
	}

	slope := olsSlope(volumes)
	stability := termStability(history)

	return &TemporalMetrics{
		GrowthRate:       slope,
		VolumeTrend:      movingAverage(volumes, movingAverageWindow),
		ClickShareTrend:  movingAverage(clickShares, movingAverageWindow),
		CompetitionTrend: movingAverage(competitions, movingAverageWindow),
		Stability:        stability,
		EmergenceScore:   emergenceScore(volumes, slope, stability),
	}
}

// olsSlope returns the ordinary least-squares regression slope of values
// against their indices 0,1,2,... Fewer than two values give slope 0.
func olsSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// movingAverage returns the simple moving average of values with the given
// window, shrinking at the start: output[i] averages values[max(0,i-w+1)..i].
func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for j := start; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(i-start+1)
	}
	return out
}

// termStability averages the term-set overlap ratio across consecutive
// history pairs. A pair of empty sets contributes 0 (dissimilar, not an
// error); a single-point history is maximally stable.
func termStability(history []HistoryPoint) float64 {
	if len(history) < 2 {
		return 1
	}
	var sum float64
	for i := 1; i < len(history); i++ {
		sum += overlapRatio(history[i-1].Terms, history[i].Terms)
	}
	return sum / float64(len(history)-1)
}

// overlapRatio is |a ∩ b| / max(|a|, |b|), with 0 when both sets are empty.
func overlapRatio(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	inter := 0
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := set[s]; ok {
			inter++
		}
	}
	larger := len(set)
	if len(seen) > larger {
		larger = len(seen)
	}
	return float64(inter) / float64(larger)
}

// emergenceScore blends normalized growth, normalized volume acceleration,
// and instability into a 0..1 signal of how fast a cluster is rising.
// Slopes are scaled by the mean history volume before the [-1,1] → [0,1]
// mapping so clusters of different absolute sizes are comparable.
func emergenceScore(volumes []float64, slope, stability float64) float64 {
	mean := 0.0
	for _, v := range volumes {
		mean += v
	}
	mean /= float64(len(volumes))

	growth := normalizeSlope(slope, mean)

	accel := 0.0
	if len(volumes) >= 3 {
		diffs := make([]float64, len(volumes)-1)
		for i := 1; i < len(volumes); i++ {
			diffs[i-1] = volumes[i] - volumes[i-1]
		}
		accel = normalizeSlope(olsSlope(diffs), mean)
	} else {
		accel = normalizeSlope(0, mean)
	}

	score := 0.4*growth + 0.4*accel + 0.2*(1-stability)
	return clamp01(score)
}

// normalizeSlope maps a per-step slope, relative to the mean volume, from
// [-1,1] onto [0,1]. A zero mean pins the relative slope at 0 (mid-scale).
func normalizeSlope(slope, mean float64) float64 {
	rel := 0.0
	if mean != 0 {
		rel = slope / mean
	}
	if rel > 1 {
		rel = 1
	}
	if rel < -1 {
		rel = -1
	}
	return (rel + 1) / 2
}
