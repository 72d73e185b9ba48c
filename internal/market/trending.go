package market

import "math"

// Timeframe selects which volume window feeds the trending score.
type Timeframe string

const (
	Timeframe1h  Timeframe = "1h"
	Timeframe24h Timeframe = "24h"
)

// Weights are the fixed trending-score weights. They are heuristic constants
// carried as configuration; do not retune them casually, ranking output is
// compared across deployments.
type Weights struct {
	Volume    float64 `yaml:"volume"`
	Liquidity float64 `yaml:"liquidity"`
	Age       float64 `yaml:"age"`
	Activity  float64 `yaml:"activity"`
}

// DefaultWeights returns the production weight vector.
func DefaultWeights() *Weights {
	return &Weights{Volume: 0.5, Liquidity: 0.2, Age: 0.15, Activity: 0.15}
}

// TrendingScorer computes the composite discovery ranking metric.
type TrendingScorer struct {
	weights Weights
}

// NewTrendingScorer creates a scorer; nil weights selects the defaults.
func NewTrendingScorer(w *Weights) *TrendingScorer {
	if w == nil {
		w = DefaultWeights()
	}
	return &TrendingScorer{weights: *w}
}

// VolumeGrowthRate relates hourly volume to the hourly average implied by the
// 24h window. Guarded against a zero 24h window: any 1h volume then counts as
// growth 1, none as 0.
func VolumeGrowthRate(s Snapshot) float64 {
	if s.Volume24h <= 0 {
		if s.Volume1h > 0 {
			return 1
		}
		return 0
	}
	return s.Volume1h / (s.Volume24h / 24)
}

// AgeBonus favors young pairs: 1.5 under an hour, 1.2 under a day, else 1.
// A zero/unknown age earns no bonus.
func AgeBonus(ageMin float64) float64 {
	if ageMin <= 0 {
		return 0
	}
	if ageMin < 60 {
		return 1.5
	}
	if ageMin < 60*24 {
		return 1.2
	}
	return 1
}

// Score computes the trending score for a snapshot. Non-finite results are
// clamped to 0.
func (t *TrendingScorer) Score(s Snapshot, tf Timeframe) float64 {
	windowVolume := s.Volume24h
	if tf == Timeframe1h {
		windowVolume = s.Volume1h
	}

	volScore := math.Log10(1+windowVolume) * VolumeGrowthRate(s)
	liqScore := math.Log10(1 + s.LiquidityUSD)
	ageScore := AgeBonus(s.AgeMinutes)
	activity := math.Log10(1 + float64(s.TxCount) + float64(s.Holders))

	score := t.weights.Volume*volScore +
		t.weights.Liquidity*liqScore +
		t.weights.Age*ageScore +
		t.weights.Activity*activity

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}
