package social

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/ratelimit"
)

func TestMockProvider_Deterministic(t *testing.T) {
	p := NewMockProvider()

	first, err := p.Fetch(context.Background(), "solana:abc123")
	require.NoError(t, err)
	second, err := p.Fetch(context.Background(), "solana:abc123")
	require.NoError(t, err)
	assert.Equal(t, first, second, "same token always yields the same counts")

	other, err := p.Fetch(context.Background(), "solana:different")
	require.NoError(t, err)
	assert.NotEqual(t, first.Mentions24h, other.Mentions24h)

	assert.GreaterOrEqual(t, first.Mentions1h, 10)
	assert.Less(t, first.Mentions1h, 130)
	assert.GreaterOrEqual(t, first.Slope, -1.0)
	assert.LessOrEqual(t, first.Slope, 1.0)
}

func TestSlopeFromCounts(t *testing.T) {
	// Last hour at the 24h hourly average is flat.
	assert.InDelta(t, 0, slopeFromCounts(10, 240), 1e-9)
	// Running hot clamps at 1.
	assert.Equal(t, 1.0, slopeFromCounts(100, 240))
	// Dead hour clamps at -1.
	assert.Equal(t, -1.0, slopeFromCounts(0, 240))
	// No history but current activity reads as full momentum.
	assert.Equal(t, 1.0, slopeFromCounts(5, 0))
	assert.Equal(t, 0.0, slopeFromCounts(0, 0))
}

func TestHTTPProvider_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "solana:abc", r.URL.Query().Get("tokenId"))
		fmt.Fprint(w, `{"mentions1h": 42, "mentions24h": 500, "slope": 0.3}`)
	}))
	defer ts.Close()

	cfg := DefaultHTTPConfig()
	cfg.Endpoint = ts.URL
	p := NewHTTPProvider(cfg, httpclient.New(httpclient.DefaultConfig()), ratelimit.NewRegistry())

	m, err := p.Fetch(context.Background(), "solana:abc")
	require.NoError(t, err)
	assert.Equal(t, 42, m.Mentions1h)
	assert.Equal(t, 500, m.Mentions24h)
	assert.Equal(t, 0.3, m.Slope)
}

func TestHTTPProvider_Unconfigured(t *testing.T) {
	p := NewHTTPProvider(DefaultHTTPConfig(), httpclient.New(httpclient.DefaultConfig()), ratelimit.NewRegistry())
	_, err := p.Fetch(context.Background(), "solana:abc")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestScraperProvider_WindowedCounts(t *testing.T) {
	now := time.Unix(1700000000, 0)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "WIF", r.URL.Query().Get("q"))
		fmt.Fprintf(w, `{"posts": [
			{"id": "p1", "text": "WIF is going up", "author": "alice", "likes": 3, "created_at": %q},
			{"id": "p2", "text": "still watching WIF", "author": "bob", "created_at": %q},
			{"id": "p3", "text": "ancient WIF take", "author": "carol", "created_at": %q},
			{"id": "", "text": "no external id", "created_at": %q},
			{"id": "p5", "text": "", "created_at": %q}
		]}`,
			now.Add(-30*time.Minute).Format(time.RFC3339),
			now.Add(-5*time.Hour).Format(time.RFC3339),
			now.Add(-48*time.Hour).Format(time.RFC3339),
			now.Add(-time.Minute).Format(time.RFC3339),
			now.Add(-time.Minute).Format(time.RFC3339))
	}))
	defer ts.Close()

	cfg := DefaultScraperConfig()
	cfg.BaseURL = ts.URL
	p := NewScraperProvider(cfg, httpclient.New(httpclient.DefaultConfig()), ratelimit.NewRegistry())
	p.now = func() time.Time { return now }

	m, err := p.FetchBySymbol(context.Background(), "solana:abc", "WIF")
	require.NoError(t, err)

	assert.Equal(t, 1, m.Mentions1h, "only the 30-minute-old post is in the hour window")
	assert.Equal(t, 2, m.Mentions24h, "stale and invalid posts are excluded")
	require.Len(t, m.Posts, 2)
	assert.Equal(t, "p1", m.Posts[0].ExternalID)
	assert.Equal(t, "alice", m.Posts[0].Author)
	assert.Equal(t, 3, m.Posts[0].Likes)
	assert.Equal(t, "solana:abc", m.Posts[0].TokenID)
}

func TestScraperProvider_FallsBackToAddress(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("q"), "address part of the token id is the query")
		fmt.Fprint(w, `{"posts": []}`)
	}))
	defer ts.Close()

	cfg := DefaultScraperConfig()
	cfg.BaseURL = ts.URL
	p := NewScraperProvider(cfg, httpclient.New(httpclient.DefaultConfig()), ratelimit.NewRegistry())

	m, err := p.Fetch(context.Background(), "solana:abc")
	require.NoError(t, err)
	assert.Zero(t, m.Mentions24h)
	assert.Zero(t, m.Slope)
}
