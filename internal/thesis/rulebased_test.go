package thesis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokensage/tokensage/internal/narrative"
)

func strPtr(s string) *string { return &s }

func TestRuleBased_TemplateLines(t *testing.T) {
	p := NewRuleBased()

	gen, err := p.GenerateThesis(context.Background(),
		TokenData{Symbol: strPtr("WIF"), Volume24h: 150000.5},
		[]string{"early-momentum", "social-breakout"},
		narrative.Signals{
			Sentiment: 0.8,
			Coherence: 1,
			Themes:    []string{"high-social-volume", "growing-interest"},
		})
	require.NoError(t, err)

	assert.Contains(t, gen.Thesis, "Thesis for WIF:")
	assert.Contains(t, gen.Thesis, "Strong early momentum detected with significant 24h volume of $150000.50.")
	assert.Contains(t, gen.Thesis, "Social chatter is rapidly increasing")
	assert.Contains(t, gen.Thesis, "Overall sentiment is highly positive.")
	assert.Contains(t, gen.Thesis, "Key narrative themes: high-social-volume, growing-interest.")
	assert.Equal(t, "rule-based", gen.Provider)
	assert.Equal(t, 1.0, gen.Confidence, "all confidence components present")
}

func TestRuleBased_FallbackOneLiner(t *testing.T) {
	p := NewRuleBased()

	gen, err := p.GenerateThesis(context.Background(), TokenData{}, nil, narrative.Signals{})
	require.NoError(t, err)
	assert.Equal(t, "A token of interest with notable on-chain activity.", gen.Thesis)
	assert.Zero(t, gen.Confidence)
}

func TestRuleBased_UnknownSymbol(t *testing.T) {
	p := NewRuleBased()

	gen, err := p.GenerateThesis(context.Background(), TokenData{},
		[]string{"whale-activity"}, narrative.Signals{})
	require.NoError(t, err)
	assert.Contains(t, gen.Thesis, "Thesis for token:")
	assert.InDelta(t, 0.3, gen.Confidence, 1e-9, "criteria matched is the only component")
}

func TestRuleBased_ConfidenceComposition(t *testing.T) {
	p := NewRuleBased()

	gen, err := p.GenerateThesis(context.Background(), TokenData{}, nil,
		narrative.Signals{Sentiment: 0.6, Themes: []string{"a"}})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, gen.Confidence, 1e-9, "sentiment 0.3 + themes 0.2")
}
