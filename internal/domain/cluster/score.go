package cluster

import "math"

// Normalization ceilings for the opportunity score. Fixed rather than
// tunable so that scores stay comparable across runs.
const (
	volumeCeiling      = 10000.0
	unitsSoldCeiling   = 10000.0
	avgUnitsCeiling    = 100.0
	competitionCeiling = 100.0
)

// Base-variant weights: volume 0.4, growth 0.3, competition headroom 0.3.
const (
	weightVolume      = 0.4
	weightGrowth      = 0.3
	weightCompetition = 0.3
)

// Extended-variant weights, applied when sales data is present. The six
// factors sum to 1.0.
const (
	extWeightVolume      = 0.2
	extWeightGrowth      = 0.2
	extWeightCompetition = 0.15
	extWeightUnitsSold   = 0.2
	extWeightAvgUnits    = 0.15
	extWeightConversion  = 0.1
)

// clamp01 limits v to [0,1].
func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// normGrowth maps a fractional growth rate in [-1,1] onto [0,1]; values
// beyond that range saturate.
func normGrowth(growth float64) float64 {
	return clamp01((growth*100 + 100) / 200)
}

// Score converts a cluster's aggregate volume, growth, and competition into
// an opportunity score in [0,100]. Competition counts inversely: crowded
// markets score lower.
func Score(totalVolume, avgGrowth, avgCompetition float64) int {
	nv := clamp01(totalVolume / volumeCeiling)
	ng := normGrowth(avgGrowth)
	nc := clamp01(avgCompetition / competitionCeiling)

	raw := 100 * (weightVolume*nv + weightGrowth*ng + weightCompetition*(1-nc))
	return clampScore(int(math.Round(raw)))
}

// ScoreExtended is the six-factor variant used when the export carries
// units-sold and conversion data.
func ScoreExtended(m Metrics) int {
	nv := clamp01(m.TotalVolume / volumeCeiling)
	ng := normGrowth(m.AvgGrowth)
	nc := clamp01(m.AvgCompetition / competitionCeiling)
	nu := clamp01(m.TotalUnitsSold / unitsSoldCeiling)
	na := clamp01(m.AvgUnitsSold / avgUnitsCeiling)
	nr := clamp01(m.AvgConversion)

	raw := 100 * (extWeightVolume*nv +
		extWeightGrowth*ng +
		extWeightCompetition*(1-nc) +
		extWeightUnitsSold*nu +
		extWeightAvgUnits*na +
		extWeightConversion*nr)
	return clampScore(int(math.Round(raw)))
}

// ScoreMetrics dispatches to the extended variant when sales data is present.
func ScoreMetrics(m Metrics) int {
	if m.HasSalesData {
		return ScoreExtended(m)
	}
	return Score(m.TotalVolume, m.AvgGrowth, m.AvgCompetition)
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
