package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tokensage/tokensage/internal/model"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func strPtr(s string) *string     { return &s }

func TestAnalyze_MeasuredSentimentWeighted(t *testing.T) {
	a := NewAnalyzer()

	// 25 analyzed posts weight the measured score by half.
	signals := a.Analyze(&model.SocialSnapshot{
		Mentions24h:       100,
		Slope:             -1, // heuristic would say -0.5, must be ignored
		SentimentScore:    floatPtr(0.8),
		SentimentAnalyzed: intPtr(25),
	}, nil)

	assert.InDelta(t, 0.4, signals.Sentiment, 1e-9)
}

func TestAnalyze_SlopeHeuristicFallback(t *testing.T) {
	a := NewAnalyzer()

	up := a.Analyze(&model.SocialSnapshot{Slope: 0.3}, nil)
	assert.Equal(t, 0.75, up.Sentiment)

	down := a.Analyze(&model.SocialSnapshot{Slope: -0.3}, nil)
	assert.Equal(t, -0.5, down.Sentiment)

	flat := a.Analyze(&model.SocialSnapshot{}, nil)
	assert.Equal(t, 0.1, flat.Sentiment)
}

func TestAnalyze_MomentumCapped(t *testing.T) {
	a := NewAnalyzer()

	signals := a.Analyze(&model.SocialSnapshot{Mentions24h: 5000}, nil)
	assert.Equal(t, 1.0, signals.Momentum)

	signals = a.Analyze(&model.SocialSnapshot{Mentions24h: 250}, nil)
	assert.Equal(t, 0.25, signals.Momentum)
}

func TestAnalyze_ThemesAndCoherence(t *testing.T) {
	a := NewAnalyzer()

	signals := a.Analyze(&model.SocialSnapshot{
		Mentions24h: 600,
		Slope:       0.6,
	}, strPtr("WIF"))

	assert.Equal(t, []string{"high-social-volume", "growing-interest", "WIF-specific-narrative"}, signals.Themes)
	assert.Equal(t, 1.0, signals.Coherence, "coherence caps at 1")

	quiet := a.Analyze(&model.SocialSnapshot{Mentions24h: 10}, nil)
	assert.Empty(t, quiet.Themes)
	assert.Zero(t, quiet.Coherence)
}

func TestAnalyze_NilSnapshot(t *testing.T) {
	a := NewAnalyzer()

	signals := a.Analyze(nil, nil)
	assert.Equal(t, 0.1, signals.Sentiment)
	assert.Zero(t, signals.Momentum)
	assert.Empty(t, signals.Themes)
}
