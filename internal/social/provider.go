package social

import (
	"context"

	"github.com/tokensage/tokensage/internal/model"
)

// Mentions is the normalized output of a social fetch for one token.
type Mentions struct {
	TokenID     string             `json:"token_id"`
	Mentions1h  int                `json:"mentions_1h"`
	Mentions24h int                `json:"mentions_24h"`
	Slope       float64            `json:"slope"`
	Posts       []model.SocialPost `json:"posts,omitempty"`
}

// Provider fetches social telemetry for a token. Implementations are
// interchangeable: deterministic mock, generic HTTP backend, scraped source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, tokenID string) (*Mentions, error)
}

// SymbolFetcher is the optional capability of providers that can search by
// display symbol. Preferred over Fetch when a token's symbol is known.
type SymbolFetcher interface {
	FetchBySymbol(ctx context.Context, tokenID, symbol string) (*Mentions, error)
}

// slopeFromCounts derives a momentum slope from the 1h-vs-24h mention ratio:
// 0 means the last hour matches the 24h hourly average, positive means the
// last hour runs hot. Clamped to [-1, 1].
func slopeFromCounts(mentions1h, mentions24h int) float64 {
	if mentions24h <= 0 {
		if mentions1h > 0 {
			return 1
		}
		return 0
	}
	hourly := float64(mentions24h) / 24
	slope := float64(mentions1h)/hourly - 1
	if slope > 1 {
		return 1
	}
	if slope < -1 {
		return -1
	}
	return slope
}
