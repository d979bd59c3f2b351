package cluster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreWirelessAccessories(t *testing.T) {
	// Combined volume 1800, avg growth 0.15, avg competition 35:
	// round(100*(0.4*0.18 + 0.3*0.575 + 0.3*0.65)) = round(43.95) = 44.
	assert.Equal(t, 44, Score(1800, 0.15, 35))
}

func TestScoreBounds(t *testing.T) {
	tests := []struct {
		name        string
		volume      float64
		growth      float64
		competition float64
	}{
		{name: "zeros", volume: 0, growth: 0, competition: 0},
		{name: "negative growth", volume: 500, growth: -2.5, competition: 10},
		{name: "saturated volume", volume: 1e12, growth: 5, competition: 0},
		{name: "saturated competition", volume: 100, growth: 0, competition: 1e6},
		{name: "everything negative-ish", volume: 0, growth: -1, competition: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.volume, tt.growth, tt.competition)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestScoreMonotonicVolume(t *testing.T) {
	prev := -1
	for _, v := range []float64{0, 100, 1000, 5000, 10000, 50000} {
		got := Score(v, 0.1, 40)
		assert.GreaterOrEqual(t, got, prev, "volume %v", v)
		prev = got
	}
}

func TestScoreAntitoneCompetition(t *testing.T) {
	prev := math.MaxInt
	for _, comp := range []float64{0, 20, 50, 80, 100, 500} {
		got := Score(3000, 0.1, comp)
		assert.LessOrEqual(t, got, prev, "competition %v", comp)
		prev = got
	}
}

func TestScoreExtended(t *testing.T) {
	m := Metrics{
		TotalVolume:    10000,
		AvgGrowth:      1,
		AvgCompetition: 0,
		TotalUnitsSold: 10000,
		AvgUnitsSold:   100,
		AvgConversion:  1,
		HasSalesData:   true,
	}
	// Every factor saturated: the six weights sum to 1.
	assert.Equal(t, 100, ScoreExtended(m))

	assert.Equal(t, 0, ScoreExtended(Metrics{
		AvgGrowth:      -1,
		AvgCompetition: 100,
		HasSalesData:   true,
	}))
}

func TestScoreMetricsDispatch(t *testing.T) {
	base := Metrics{TotalVolume: 1800, AvgGrowth: 0.15, AvgCompetition: 35}
	assert.Equal(t, Score(1800, 0.15, 35), ScoreMetrics(base))

	extended := base
	extended.HasSalesData = true
	extended.TotalUnitsSold = 500
	extended.AvgUnitsSold = 50
	extended.AvgConversion = 0.2
	assert.Equal(t, ScoreExtended(extended), ScoreMetrics(extended))
	assert.NotEqual(t, ScoreMetrics(base), ScoreMetrics(extended))
}

func TestNormGrowthMapping(t *testing.T) {
	assert.InDelta(t, 0.5, normGrowth(0), 1e-9)
	assert.InDelta(t, 1, normGrowth(1), 1e-9)
	assert.InDelta(t, 0, normGrowth(-1), 1e-9)
	assert.InDelta(t, 1, normGrowth(3), 1e-9)
	assert.InDelta(t, 0, normGrowth(-3), 1e-9)
	assert.InDelta(t, 0.575, normGrowth(0.15), 1e-9)
}
