// Package scoring turns market, social and risk inputs for a token into a
// single bounded signal score with a label and human-readable reasons.
package scoring

import (
	"math"

	"github.com/tokensage/tokensage/internal/model"
)

// Weights is the contribution of each normalized component to the raw score.
type Weights struct {
	Mentions1h    float64 `yaml:"mentions_1h"`
	MentionsSlope float64 `yaml:"mentions_slope"`
	Volume1h      float64 `yaml:"volume_1h"`
	Liquidity     float64 `yaml:"liquidity"`
	Age           float64 `yaml:"age"`
	Risk          float64 `yaml:"risk"`
}

// Baseline is a fixed mean and deviation used to z-score a raw component.
type Baseline struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
}

// Config holds the scoring constants. Scores are only comparable across
// tokens scored with the same config.
type Config struct {
	Weights          Weights  `yaml:"weights"`
	Mentions1h       Baseline `yaml:"mentions_1h_baseline"`
	Slope            Baseline `yaml:"slope_baseline"`
	Volume1h         Baseline `yaml:"volume_1h_baseline"`
	HypeThreshold    float64  `yaml:"hype_threshold"`
	WhaleThreshold   float64  `yaml:"whale_threshold"`
	FakePumpCeiling  float64  `yaml:"fake_pump_ceiling"`
	ScoreBound       float64  `yaml:"score_bound"`
	MaxAgePenalty    float64  `yaml:"max_age_penalty"`
	MaxRiskPenalty   float64  `yaml:"max_risk_penalty"`
	MaxLiquidityStep float64  `yaml:"max_liquidity_step"`
}

// DefaultConfig returns the calibrated scoring constants.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Mentions1h:    1.2,
			MentionsSlope: 1.0,
			Volume1h:      1.3,
			Liquidity:     0.6,
			Age:           -0.2,
			Risk:          -1.5,
		},
		Mentions1h:       Baseline{Mean: 50, StdDev: 25},
		Slope:            Baseline{Mean: 0, StdDev: 1},
		Volume1h:         Baseline{Mean: 10000, StdDev: 8000},
		HypeThreshold:    2.5,
		WhaleThreshold:   1.2,
		FakePumpCeiling:  -1,
		ScoreBound:       5,
		MaxAgePenalty:    3,
		MaxRiskPenalty:   3,
		MaxLiquidityStep: 3,
	}
}

// Input is everything Score needs about one token at one point in time.
type Input struct {
	TokenID      string
	Mentions1h   int
	Slope        float64
	Volume1h     float64
	LiquidityUSD float64
	AgeMinutes   float64
	RiskFlags    []string
}

// Result is a bounded score with its label and the reasons that drove it.
type Result struct {
	TokenID string
	Score   float64
	Label   model.SignalLabel
	Reasons []string
}

// Engine computes signal scores. It is pure: the same input always produces
// the same result.
type Engine struct {
	config Config
}

// NewEngine creates an Engine with the given constants.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Score computes the bounded score, label and reasons for one input.
func (e *Engine) Score(in Input) Result {
	cfg := e.config

	m1hZ := zScore(float64(in.Mentions1h), cfg.Mentions1h)
	slopeZ := zScore(in.Slope, cfg.Slope)
	v1hZ := zScore(in.Volume1h, cfg.Volume1h)

	liqBucket := clamp(math.Log10(math.Max(1, in.LiquidityUSD))-2, 0, cfg.MaxLiquidityStep)
	agePenalty := math.Min(cfg.MaxAgePenalty, in.AgeMinutes/60)
	riskPenalty := math.Min(cfg.MaxRiskPenalty, float64(len(in.RiskFlags)))

	raw := cfg.Weights.Mentions1h*m1hZ +
		cfg.Weights.MentionsSlope*slopeZ +
		cfg.Weights.Volume1h*v1hZ +
		cfg.Weights.Liquidity*liqBucket +
		cfg.Weights.Age*agePenalty +
		cfg.Weights.Risk*riskPenalty

	score := round2(clamp(raw, -cfg.ScoreBound, cfg.ScoreBound))

	var label model.SignalLabel
	switch {
	case score >= cfg.HypeThreshold:
		label = model.LabelHypeBuilding
	case score >= cfg.WhaleThreshold:
		label = model.LabelWhalePlay
	case score <= cfg.FakePumpCeiling:
		label = model.LabelFakePump
	default:
		label = model.LabelDeadZone
	}

	var reasons []string
	if m1hZ > 1 {
		reasons = append(reasons, "mentions rising")
	}
	if slopeZ > 0.5 {
		reasons = append(reasons, "momentum up")
	}
	if v1hZ > 1 {
		reasons = append(reasons, "volume spike")
	}
	if liqBucket < 1 {
		reasons = append(reasons, "low liquidity")
	}
	if riskPenalty > 0 {
		reasons = append(reasons, "risk flags")
	}

	return Result{TokenID: in.TokenID, Score: score, Label: label, Reasons: reasons}
}

func zScore(v float64, b Baseline) float64 {
	if b.StdDev == 0 {
		return 0
	}
	return (v - b.Mean) / b.StdDev
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
