package cluster

import (
	"sort"

	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
)

// HierarchicalMerger builds the agglomerative merge tree over level-0
// clusters: at each step the two clusters with the most similar centroids are
// combined, until a single root remains.
type HierarchicalMerger struct {
	logger logging.Logger
}

// NewHierarchicalMerger constructs a HierarchicalMerger. A nil logger falls
// back to the no-op implementation.
func NewHierarchicalMerger(logger logging.Logger) *HierarchicalMerger {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HierarchicalMerger{logger: logger}
}

// Merge agglomerates leaves inside arena and returns every node constructed
// at any point — each leaf and each merged ancestor appears once — sorted by
// descending opportunity score. Callers pick their granularity by selecting
// nodes at whatever level suits them.
//
// Ties in centroid similarity break on the first pair found in iteration
// order, which keeps the hierarchy deterministic for identical input.
func (m *HierarchicalMerger) Merge(arena *Arena, leaves []*Cluster) []*Cluster {
	nodes := make([]*Cluster, 0, 2*len(leaves))
	nodes = append(nodes, leaves...)

	if len(leaves) > 1 {
		working := append([]*Cluster(nil), leaves...)
		for len(working) > 1 {
			bestI, bestJ := -1, -1
			bestSim := 0.0
			for i := 0; i < len(working); i++ {
				for j := i + 1; j < len(working); j++ {
					sim := CosineSimilarity(working[i].Centroid(), working[j].Centroid())
					if bestI == -1 || sim > bestSim {
						bestI, bestJ, bestSim = i, j, sim
					}
				}
			}
			if bestI == -1 {
				break
			}

			merged := arena.Merge(working[bestI], working[bestJ], bestSim)
			nodes = append(nodes, merged)

			// Replace the pair with the merged node; bestJ > bestI.
			working[bestI] = merged
			working = append(working[:bestJ], working[bestJ+1:]...)
		}
		m.logger.Debug("hierarchy complete",
			logging.Int("leaves", len(leaves)),
			logging.Int("nodes", len(nodes)))
	}

	for _, c := range nodes {
		c.Score = ScoreMetrics(c.Aggregate())
	}

	// Stable sort keeps creation order among equal scores deterministic.
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Score > nodes[j].Score
	})
	return nodes
}
