// Package criteria evaluates stateless named rules over a token's latest
// market and social snapshots. A prophecy is only minted for tokens that
// match at least one rule.
package criteria

import (
	"math"

	"github.com/tokensage/tokensage/internal/model"
)

// Input is the snapshot pair a rule sees.
type Input struct {
	Market *model.MarketSnapshot
	Social *model.SocialSnapshot
}

// Rule is a named predicate over an Input.
type Rule struct {
	Name  string
	Match func(Input) bool
}

// Evaluation is the outcome of running all rules against one input.
type Evaluation struct {
	Passed  bool     `json:"passed"`
	Matched []string `json:"matched"`
	Score   int      `json:"score"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "early-momentum",
			Match: func(in Input) bool {
				if in.Market == nil || in.Social == nil {
					return false
				}
				return in.Market.Volume24h > 100000 &&
					in.Market.AgeMinutes < 1440 &&
					in.Social.Mentions24h > 100
			},
		},
		{
			Name: "whale-activity",
			Match: func(in Input) bool {
				if in.Market == nil {
					return false
				}
				return in.Market.LiquidityUSD > 500000 &&
					math.Abs(in.Market.Price) > 0.1
			},
		},
		{
			Name: "social-breakout",
			Match: func(in Input) bool {
				if in.Social == nil {
					return false
				}
				return in.Social.Mentions24h > 500 && in.Social.Slope > 0.5
			},
		},
	}
}

// Engine runs a fixed rule set.
type Engine struct {
	rules []Rule
}

// NewEngine creates an Engine from the default rules plus any extras.
func NewEngine(extra ...Rule) *Engine {
	return &Engine{rules: append(DefaultRules(), extra...)}
}

// Evaluate runs every rule in order. Score is the match count.
func (e *Engine) Evaluate(in Input) Evaluation {
	matched := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		if r.Match(in) {
			matched = append(matched, r.Name)
		}
	}
	return Evaluation{
		Passed:  len(matched) > 0,
		Matched: matched,
		Score:   len(matched),
	}
}
