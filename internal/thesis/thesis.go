// Package thesis generates the written investment thesis attached to a
// prophecy. A rule-based template backend is always available; hosted LLM
// backends are registered when their API keys are configured.
package thesis

import (
	"context"
	"time"

	"github.com/tokensage/tokensage/internal/narrative"
)

// TokenData is the market context a thesis is written against.
type TokenData struct {
	Symbol    *string `json:"symbol,omitempty"`
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"volume_24h"`
}

// DisplaySymbol returns the symbol, or "token" when none is known.
func (t TokenData) DisplaySymbol() string {
	if t.Symbol != nil && *t.Symbol != "" {
		return *t.Symbol
	}
	return "token"
}

// Generation is one produced thesis with its provenance.
type Generation struct {
	Thesis         string        `json:"thesis"`
	Confidence     float64       `json:"confidence"`
	Provider       string        `json:"provider"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Provider generates a thesis from token data, the matched criteria names
// and the narrative read.
type Provider interface {
	Name() string
	GenerateThesis(ctx context.Context, token TokenData, matched []string, signals narrative.Signals) (*Generation, error)
}
