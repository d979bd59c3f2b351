package cluster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float64
		b    []float64
		want float64
	}{
		{name: "identical unit vectors", a: []float64{1, 0}, b: []float64{1, 0}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1},
		{name: "scaled copies", a: []float64{2, 4}, b: []float64{1, 2}, want: 1},
		{name: "dimension mismatch", a: []float64{1, 2}, b: []float64{1, 2, 3}, want: 0},
		{name: "zero magnitude", a: []float64{0, 0}, b: []float64{1, 2}, want: 0},
		{name: "both empty", a: nil, b: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestEuclideanDistance(t *testing.T) {
	assert.InDelta(t, 5, EuclideanDistance([]float64{0, 0}, []float64{3, 4}), 1e-9)
	assert.InDelta(t, 0, EuclideanDistance([]float64{1, 1}, []float64{1, 1}), 1e-9)
	assert.True(t, math.IsInf(EuclideanDistance([]float64{1}, []float64{1, 2}), 1))
	assert.True(t, math.IsInf(EuclideanDistance(nil, nil), 1))
}

func TestCentroid(t *testing.T) {
	t.Run("mean of vectors", func(t *testing.T) {
		got := Centroid([][]float64{{1, 2}, {3, 4}})
		require.Len(t, got, 2)
		assert.InDelta(t, 2, got[0], 1e-9)
		assert.InDelta(t, 3, got[1], 1e-9)
	})

	t.Run("skips empty and mismatched vectors", func(t *testing.T) {
		got := Centroid([][]float64{nil, {2, 4}, {1, 2, 3}, {4, 6}})
		require.Len(t, got, 2)
		assert.InDelta(t, 3, got[0], 1e-9)
		assert.InDelta(t, 5, got[1], 1e-9)
	})

	t.Run("no usable vectors", func(t *testing.T) {
		assert.Nil(t, Centroid(nil))
		assert.Nil(t, Centroid([][]float64{nil, {}}))
	})
}
