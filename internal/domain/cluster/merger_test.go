package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagelab/termlens/internal/domain/term"
)

func TestMergeSingleClusterUnchanged(t *testing.T) {
	arena := NewArena()
	leaf := arena.NewLeaf([]term.Record{
		{Term: "usb hub", Volume: 500, Growth: 0.1, Competition: 20, Embedding: []float64{1, 0}},
	})

	merger := NewHierarchicalMerger(nil)
	nodes := merger.Merge(arena, []*Cluster{leaf})
	require.Len(t, nodes, 1)
	assert.Same(t, leaf, nodes[0])
	assert.Equal(t, 0, leaf.Level)
	assert.Equal(t, 1.0, leaf.Similarity)
	assert.Len(t, leaf.Terms, 1)

	// Merging again is a no-op apart from re-scoring.
	again := merger.Merge(arena, nodes)
	require.Len(t, again, 1)
	assert.Same(t, leaf, again[0])
	assert.Equal(t, 1, arena.Len())
}

func TestMergeBuildsFullHierarchy(t *testing.T) {
	arena := NewArena()
	a := arena.NewLeaf([]term.Record{{Term: "gaming mouse", Volume: 9000, Growth: 0.5, Competition: 10, Embedding: []float64{1, 0}}})
	b := arena.NewLeaf([]term.Record{{Term: "gaming mousepad", Volume: 3000, Growth: 0.3, Competition: 30, Embedding: []float64{1, 0.05}}})
	c := arena.NewLeaf([]term.Record{{Term: "standing desk", Volume: 200, Growth: -0.2, Competition: 90, Embedding: []float64{0, 1}}})

	nodes := NewHierarchicalMerger(nil).Merge(arena, []*Cluster{a, b, c})

	// 3 leaves plus 2 merge nodes, all returned.
	require.Len(t, nodes, 5)
	assert.Equal(t, 5, arena.Len())

	// The most similar pair merges first.
	first := arena.Get(3)
	require.NotNil(t, first)
	assert.Equal(t, a.ID, first.LeftChild)
	assert.Equal(t, b.ID, first.RightChild)
	assert.Equal(t, 1, first.Level)
	assert.Greater(t, first.Similarity, 0.99)

	root := arena.Get(4)
	require.NotNil(t, root)
	assert.Equal(t, first.ID, root.LeftChild)
	assert.Equal(t, c.ID, root.RightChild)
	assert.Equal(t, 2, root.Level)
	assert.ElementsMatch(t,
		[]string{"gaming mouse", "gaming mousepad", "standing desk"},
		root.TermTexts())

	// Every node carries a score and the list is sorted descending.
	for i := 1; i < len(nodes); i++ {
		assert.GreaterOrEqual(t, nodes[i-1].Score, nodes[i].Score)
	}
	for _, n := range nodes {
		assert.GreaterOrEqual(t, n.Score, 0)
		assert.LessOrEqual(t, n.Score, 100)
	}
}

func TestMergeScoresMatchAggregates(t *testing.T) {
	arena := NewArena()
	a := arena.NewLeaf([]term.Record{{Term: "a", Volume: 1000, Growth: 0.2, Competition: 30, Embedding: []float64{1, 0.01}}})
	b := arena.NewLeaf([]term.Record{{Term: "b", Volume: 800, Growth: 0.1, Competition: 40, Embedding: []float64{1, 0.02}}})

	nodes := NewHierarchicalMerger(nil).Merge(arena, []*Cluster{a, b})
	require.Len(t, nodes, 3)

	root := arena.Get(2)
	require.NotNil(t, root)
	assert.Equal(t, Score(1800, 0.15, 35), root.Score)
	assert.Equal(t, Score(1000, 0.2, 30), a.Score)
	assert.Equal(t, Score(800, 0.1, 40), b.Score)
}

func TestMergeEmptyLeaves(t *testing.T) {
	nodes := NewHierarchicalMerger(nil).Merge(NewArena(), nil)
	assert.Empty(t, nodes)
}

func TestMergeStableTieOrder(t *testing.T) {
	arena := NewArena()
	// Four leaves arranged as two identical-similarity pairs; the first
	// pair found in iteration order must merge first.
	a := arena.NewLeaf([]term.Record{{Term: "a", Volume: 10, Embedding: []float64{1, 0}}})
	b := arena.NewLeaf([]term.Record{{Term: "b", Volume: 10, Embedding: []float64{1, 0}}})
	c := arena.NewLeaf([]term.Record{{Term: "c", Volume: 10, Embedding: []float64{0, 1}}})
	d := arena.NewLeaf([]term.Record{{Term: "d", Volume: 10, Embedding: []float64{0, 1}}})

	NewHierarchicalMerger(nil).Merge(arena, []*Cluster{a, b, c, d})

	first := arena.Get(4)
	require.NotNil(t, first)
	assert.Equal(t, a.ID, first.LeftChild)
	assert.Equal(t, b.ID, first.RightChild)
}
