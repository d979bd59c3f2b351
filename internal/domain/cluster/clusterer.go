package cluster

import (
	"sort"

	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
)

// noiseLabel is the sentinel assigned to terms no dense region claims.
const noiseLabel = -1

// DensityClusterer groups embedded term records into level-0 clusters plus a
// possible noise cluster. Density sensitivity scales with dataset size: small
// batches get fine-grained clusters, large ones suppress noise.
type DensityClusterer struct {
	logger logging.Logger
}

// NewDensityClusterer constructs a DensityClusterer. A nil logger falls back
// to the no-op implementation.
func NewDensityClusterer(logger logging.Logger) *DensityClusterer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DensityClusterer{logger: logger}
}

// MinClusterSize returns the smallest group size that survives density
// grouping for a batch of n terms: max(2, floor(0.05·n)).
func MinClusterSize(n int) int {
	size := n / 20
	if size < 2 {
		size = 2
	}
	return size
}

// MinSamples returns the core-point neighborhood requirement derived from
// the minimum cluster size: max(1, floor(0.5·minClusterSize)).
func MinSamples(minClusterSize int) int {
	samples := minClusterSize / 2
	if samples < 1 {
		samples = 1
	}
	return samples
}

// Cluster partitions records into level-0 clusters appended to arena. The
// second return value lists terms discarded as sub-threshold noise; together
// with the clusters' members it always equals the input set.
//
// Fewer than two records, or input the density pass cannot partition at all,
// produce a single all-terms cluster rather than an error.
func (dc *DensityClusterer) Cluster(arena *Arena, records []term.Record) ([]*Cluster, []term.Record) {
	n := len(records)
	if n == 0 {
		return nil, nil
	}
	if n < 2 {
		return []*Cluster{arena.NewLeaf(records)}, nil
	}

	minClusterSize := MinClusterSize(n)
	minSamples := MinSamples(minClusterSize)

	labels, ok := dc.densityLabels(records, minSamples)
	if !ok {
		dc.logger.Warn("degenerate embeddings, falling back to single cluster",
			logging.Int("terms", n))
		return []*Cluster{arena.NewLeaf(records)}, nil
	}

	// Dissolve groups below the minimum cluster size into noise.
	counts := map[int]int{}
	for _, l := range labels {
		counts[l]++
	}
	for i, l := range labels {
		if l != noiseLabel && counts[l] < minClusterSize {
			labels[i] = noiseLabel
		}
	}

	grouped := map[int][]term.Record{}
	var noise []term.Record
	for i, l := range labels {
		if l == noiseLabel {
			noise = append(noise, records[i])
			continue
		}
		grouped[l] = append(grouped[l], records[i])
	}

	labelOrder := make([]int, 0, len(grouped))
	for l := range grouped {
		labelOrder = append(labelOrder, l)
	}
	sort.Ints(labelOrder)

	clusters := make([]*Cluster, 0, len(grouped)+1)
	for _, l := range labelOrder {
		clusters = append(clusters, arena.NewLeaf(grouped[l]))
	}

	// A volume-significant noise set becomes its own cluster instead of
	// being silently dropped.
	var discarded []term.Record
	if len(noise) > minClusterSize {
		clusters = append(clusters, arena.NewLeaf(noise))
	} else {
		discarded = noise
	}

	if len(clusters) == 0 {
		dc.logger.Warn("density pass produced no clusters, falling back to single cluster",
			logging.Int("terms", n))
		return []*Cluster{arena.NewLeaf(records)}, nil
	}

	if len(discarded) > 0 {
		dc.logger.Debug("discarded sub-threshold noise terms",
			logging.Int("count", len(discarded)))
	}
	return clusters, discarded
}

// densityLabels runs the density pass and returns one label per record, or
// ok=false when the input geometry is degenerate (all points coincident).
func (dc *DensityClusterer) densityLabels(records []term.Record, minSamples int) ([]int, bool) {
	n := len(records)

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := EuclideanDistance(records[i].Embedding, records[j].Embedding)
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	eps := estimateEpsilon(dist, minSamples)
	if eps == 0 {
		return nil, false
	}

	// Classic density expansion over the eps-neighborhood graph. Iteration
	// is strictly in input index order, which makes labels deterministic.
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseLabel
	}
	visited := make([]bool, n)
	next := 0

	neighborhoods := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && dist[i][j] <= eps {
				neighborhoods[i] = append(neighborhoods[i], j)
			}
		}
	}

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		// Core test counts the point itself.
		if len(neighborhoods[i])+1 < minSamples {
			continue
		}

		labels[i] = next
		queue := append([]int(nil), neighborhoods[i]...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == noiseLabel {
				labels[j] = next
			}
			if visited[j] {
				continue
			}
			visited[j] = true
			if len(neighborhoods[j])+1 >= minSamples {
				queue = append(queue, neighborhoods[j]...)
			}
		}
		next++
	}

	return labels, true
}

// estimateEpsilon derives the neighborhood radius from the data itself: the
// median over points of the distance to their minSamples-th nearest neighbor.
// Returns 0 when every pairwise distance is 0.
func estimateEpsilon(dist [][]float64, minSamples int) float64 {
	n := len(dist)
	kdists := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if i != j {
				row = append(row, dist[i][j])
			}
		}
		sort.Float64s(row)
		k := minSamples
		if k > len(row) {
			k = len(row)
		}
		if k > 0 {
			kdists = append(kdists, row[k-1])
		}
	}
	if len(kdists) == 0 {
		return 0
	}
	sort.Float64s(kdists)
	return kdists[len(kdists)/2]
}
