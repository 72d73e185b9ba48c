package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tokensage/tokensage/internal/model"
)

func TestScore_Idempotent(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	in := Input{
		TokenID:      "sol:abc",
		Mentions1h:   90,
		Slope:        0.8,
		Volume1h:     25000,
		LiquidityUSD: 120000,
		AgeMinutes:   300,
		RiskFlags:    []string{"contract-unverified"},
	}

	first := engine.Score(in)
	second := engine.Score(in)
	assert.Equal(t, first, second, "same input must score identically")
}

func TestScore_BoundsAndRounding(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	high := engine.Score(Input{
		Mentions1h: 100000,
		Slope:      50,
		Volume1h:   1e9,
	})
	assert.Equal(t, 5.0, high.Score, "score clamps at the upper bound")
	assert.Equal(t, model.LabelHypeBuilding, high.Label)

	low := engine.Score(Input{
		Mentions1h: 0,
		Slope:      -50,
		Volume1h:   0,
		AgeMinutes: 100000,
		RiskFlags:  []string{"a", "b", "c", "d"},
	})
	assert.Equal(t, -5.0, low.Score, "score clamps at the lower bound")
	assert.Equal(t, model.LabelFakePump, low.Label)
}

func TestScore_Labels(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	cases := []struct {
		name  string
		in    Input
		label model.SignalLabel
	}{
		{
			name:  "dead zone on baseline input",
			in:    Input{Mentions1h: 50, Slope: 0, Volume1h: 10000},
			label: model.LabelDeadZone,
		},
		{
			name:  "whale play on moderate lift",
			in:    Input{Mentions1h: 75, Slope: 0.5, Volume1h: 14000},
			label: model.LabelWhalePlay,
		},
		{
			name:  "fake pump on risk-heavy input",
			in:    Input{Mentions1h: 50, Volume1h: 10000, RiskFlags: []string{"honeypot"}},
			label: model.LabelFakePump,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.label, engine.Score(tc.in).Label)
		})
	}
}

func TestScore_ReasonsInsertionOrder(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	result := engine.Score(Input{
		Mentions1h:   200,  // z = 6 > 1
		Slope:        1,    // z = 1 > 0.5
		Volume1h:     50000, // z = 5 > 1
		LiquidityUSD: 50,   // bucket 0 < 1
		RiskFlags:    []string{"honeypot"},
	})

	assert.Equal(t, []string{
		"mentions rising",
		"momentum up",
		"volume spike",
		"low liquidity",
		"risk flags",
	}, result.Reasons)
}

func TestScore_LiquidityBucket(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	// Liquidity contributes at most MaxLiquidityStep * weight; a huge pool
	// must not outscore the cap.
	modest := engine.Score(Input{Mentions1h: 50, Volume1h: 10000, LiquidityUSD: 100000})
	huge := engine.Score(Input{Mentions1h: 50, Volume1h: 10000, LiquidityUSD: 1e12})
	assert.Equal(t, modest.Score, huge.Score, "liquidity bucket saturates at 3")
}
