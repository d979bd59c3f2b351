package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagelab/termlens/internal/domain/term"
)

func TestArenaLeafAndMerge(t *testing.T) {
	arena := NewArena()

	left := arena.NewLeaf([]term.Record{
		{Term: "wireless mouse", Volume: 1000, Embedding: []float64{1, 0}},
	})
	right := arena.NewLeaf([]term.Record{
		{Term: "wireless keyboard", Volume: 800, Embedding: []float64{0.9, 0.1}},
	})

	assert.Equal(t, 0, left.ID)
	assert.Equal(t, 1, right.ID)
	assert.True(t, left.IsLeaf())
	assert.Equal(t, 0, left.Level)
	assert.Equal(t, 1.0, left.Similarity)
	assert.Equal(t, NoChild, left.LeftChild)

	merged := arena.Merge(left, right, 0.95)
	assert.Equal(t, 2, merged.ID)
	assert.Equal(t, 1, merged.Level)
	assert.False(t, merged.IsLeaf())
	assert.Equal(t, left.ID, merged.LeftChild)
	assert.Equal(t, right.ID, merged.RightChild)
	assert.Equal(t, 0.95, merged.Similarity)
	assert.Equal(t, []string{"wireless mouse", "wireless keyboard"}, merged.TermTexts())

	// Level is one above the deeper child.
	top := arena.Merge(merged, left, 0.5)
	assert.Equal(t, 2, top.Level)

	assert.Equal(t, 4, arena.Len())
	assert.Same(t, merged, arena.Get(2))
	assert.Nil(t, arena.Get(99))
	assert.Nil(t, arena.Get(-1))
	assert.Len(t, arena.All(), 4)
}

func TestClusterCentroidCached(t *testing.T) {
	c := &Cluster{Terms: []term.Record{
		{Term: "a", Embedding: []float64{1, 0}},
		{Term: "b", Embedding: []float64{0, 1}},
	}}
	first := c.Centroid()
	require.Len(t, first, 2)
	assert.InDelta(t, 0.5, first[0], 1e-9)
	assert.InDelta(t, 0.5, first[1], 1e-9)

	// Same backing slice on subsequent calls.
	assert.Equal(t, &first[0], &c.Centroid()[0])
}

func TestClusterAggregate(t *testing.T) {
	c := &Cluster{Terms: []term.Record{
		{Term: "a", Volume: 1000, Growth: 0.2, Competition: 30, ClickShare: 0.5},
		{Term: "b", Volume: 800, Growth: 0.1, Competition: 40, ClickShare: 0.3},
	}}
	m := c.Aggregate()
	assert.InDelta(t, 1800, m.TotalVolume, 1e-9)
	assert.InDelta(t, 0.15, m.AvgGrowth, 1e-9)
	assert.InDelta(t, 35, m.AvgCompetition, 1e-9)
	assert.InDelta(t, 0.4, m.AvgClickShare, 1e-9)
	assert.False(t, m.HasSalesData)
}

func TestClusterAggregateSalesData(t *testing.T) {
	c := &Cluster{Terms: []term.Record{
		{Term: "a", Volume: 100, UnitsSold: 50, ConversionRate: 0.1},
		{Term: "b", Volume: 200, UnitsSold: 150, ConversionRate: 0.3},
	}}
	m := c.Aggregate()
	assert.True(t, m.HasSalesData)
	assert.InDelta(t, 200, m.TotalUnitsSold, 1e-9)
	assert.InDelta(t, 100, m.AvgUnitsSold, 1e-9)
	assert.InDelta(t, 0.2, m.AvgConversion, 1e-9)
}

func TestClusterAggregateEmpty(t *testing.T) {
	var c Cluster
	assert.Equal(t, Metrics{}, c.Aggregate())
}
