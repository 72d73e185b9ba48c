// Package narrative condenses a token's social snapshot into a small set of
// narrative signals used by the thesis generators.
package narrative

import (
	"fmt"
	"math"

	"github.com/tokensage/tokensage/internal/model"
)

// Signals is the narrative read on a token. Sentiment is in [-1, 1],
// momentum and coherence in [0, 1].
type Signals struct {
	Sentiment float64  `json:"sentiment"`
	Momentum  float64  `json:"momentum"`
	Coherence float64  `json:"coherence"`
	Themes    []string `json:"themes"`
}

// Analyzer derives Signals from social telemetry.
type Analyzer struct{}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze reads the snapshot and optional display symbol. A nil snapshot
// yields the zero-mention read.
func (a *Analyzer) Analyze(social *model.SocialSnapshot, symbol *string) Signals {
	if social == nil {
		social = &model.SocialSnapshot{}
	}
	themes := extractThemes(social, symbol)
	return Signals{
		Sentiment: sentiment(social),
		Momentum:  math.Min(1, float64(social.Mentions24h)/1000),
		Coherence: math.Min(1, float64(len(themes))/2),
		Themes:    themes,
	}
}

// sentiment prefers the measured score, weighted by how many posts backed
// it, and falls back to a slope heuristic when nothing was analyzed.
func sentiment(social *model.SocialSnapshot) float64 {
	if social.SentimentScore != nil && social.AnalyzedCount() > 0 {
		return *social.SentimentScore * math.Min(1, float64(social.AnalyzedCount())/50)
	}
	switch {
	case social.Slope > 0:
		return 0.75
	case social.Slope < 0:
		return -0.5
	default:
		return 0.1
	}
}

func extractThemes(social *model.SocialSnapshot, symbol *string) []string {
	themes := []string{}
	if social.Mentions24h > 500 {
		themes = append(themes, "high-social-volume")
	}
	if social.Slope > 0.5 {
		themes = append(themes, "growing-interest")
	}
	if symbol != nil && *symbol != "" {
		themes = append(themes, fmt.Sprintf("%s-specific-narrative", *symbol))
	}
	return themes
}
