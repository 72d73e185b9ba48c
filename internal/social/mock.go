package social

import (
	"context"

	"github.com/rs/zerolog/log"
)

// MockProvider produces deterministic pseudo-random mention counts from the
// token id alone, for offline development and tests. The same token always
// yields the same counts.
type MockProvider struct{}

// NewMockProvider creates the deterministic provider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) Name() string { return "mock" }

// Fetch derives counts from a byte-sum hash of the token id.
func (m *MockProvider) Fetch(_ context.Context, tokenID string) (*Mentions, error) {
	h := 0
	for _, c := range []byte(tokenID) {
		h += int(c)
	}
	mentions1h := h%120 + 10
	mentions24h := mentions1h*10 + h%50
	slope := float64(h%20-10) / 10

	log.Debug().Str("token", tokenID).Int("mentions_24h", mentions24h).Msg("Mock social fetch")
	return &Mentions{
		TokenID:     tokenID,
		Mentions1h:  mentions1h,
		Mentions24h: mentions24h,
		Slope:       slope,
	}, nil
}
