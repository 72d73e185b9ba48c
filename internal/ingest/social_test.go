package ingest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokensage/tokensage/internal/model"
	"github.com/tokensage/tokensage/internal/queue"
	"github.com/tokensage/tokensage/internal/social"
	"github.com/tokensage/tokensage/internal/store"
)

type stubProvider struct {
	mentions *social.Mentions
	bySymbol map[string]*social.Mentions
	lastCall string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Fetch(_ context.Context, tokenID string) (*social.Mentions, error) {
	s.lastCall = "fetch:" + tokenID
	return s.mentions, nil
}

func (s *stubProvider) FetchBySymbol(_ context.Context, tokenID, symbol string) (*social.Mentions, error) {
	s.lastCall = "symbol:" + symbol
	if m, ok := s.bySymbol[symbol]; ok {
		return m, nil
	}
	return s.mentions, nil
}

func socialPayload(t *testing.T, job queue.SocialJob) []byte {
	t.Helper()
	data, err := json.Marshal(job)
	require.NoError(t, err)
	return data
}

func TestSocialWorker_CapturesSnapshot(t *testing.T) {
	st := store.NewMemory()
	provider := &stubProvider{mentions: &social.Mentions{
		TokenID:     "sol:abc",
		Mentions1h:  40,
		Mentions24h: 300,
		Slope:       0.8,
	}}

	w := NewSocialWorker(st, provider, nil)
	require.NoError(t, w.Handle(context.Background(), socialPayload(t, queue.SocialJob{TokenID: "sol:abc"})))

	snap, err := st.LatestSocialSnapshot(context.Background(), "sol:abc")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 40, snap.Mentions1h)
	assert.Equal(t, 300, snap.Mentions24h)
	assert.Equal(t, 0.8, snap.Slope)
	assert.Nil(t, snap.SentimentScore, "no analyzer configured")
}

func TestSocialWorker_PrefersSymbolSearch(t *testing.T) {
	st := store.NewMemory()
	sym := "WIF"
	require.NoError(t, st.UpsertToken(context.Background(), model.Token{ID: "sol:abc", Chain: "sol", Address: "abc", Symbol: &sym}))

	provider := &stubProvider{
		mentions: &social.Mentions{TokenID: "sol:abc", Mentions24h: 1},
		bySymbol: map[string]*social.Mentions{
			"WIF": {TokenID: "sol:abc", Mentions1h: 10, Mentions24h: 99},
		},
	}

	w := NewSocialWorker(st, provider, nil)
	require.NoError(t, w.Handle(context.Background(), socialPayload(t, queue.SocialJob{TokenID: "sol:abc"})))

	assert.Equal(t, "symbol:WIF", provider.lastCall)
	snap, err := st.LatestSocialSnapshot(context.Background(), "sol:abc")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 99, snap.Mentions24h)
}

func TestSocialWorker_FallsBackWithoutSymbol(t *testing.T) {
	st := store.NewMemory()
	provider := &stubProvider{mentions: &social.Mentions{TokenID: "sol:abc", Mentions24h: 5}}

	w := NewSocialWorker(st, provider, nil)
	require.NoError(t, w.Handle(context.Background(), socialPayload(t, queue.SocialJob{TokenID: "sol:abc"})))

	assert.Equal(t, "fetch:sol:abc", provider.lastCall)
}

func TestSocialWorker_PersistsPosts(t *testing.T) {
	st := store.NewMemory()
	provider := &stubProvider{mentions: &social.Mentions{
		TokenID:     "sol:abc",
		Mentions1h:  2,
		Mentions24h: 2,
		Posts: []model.SocialPost{
			{ExternalID: "p1", TokenID: "sol:abc", Text: "to the moon", Author: "alice"},
			{ExternalID: "", TokenID: "sol:abc", Text: "no id, skipped"},
			{ExternalID: "p2", TokenID: "sol:abc", Text: "rug incoming", Author: "bob"},
		},
	}}

	w := NewSocialWorker(st, provider, nil)
	require.NoError(t, w.Handle(context.Background(), socialPayload(t, queue.SocialJob{TokenID: "sol:abc"})))

	snap, err := st.LatestSocialSnapshot(context.Background(), "sol:abc")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Mentions24h)
}

func TestSocialWorker_MockProviderIsDeterministic(t *testing.T) {
	st := store.NewMemory()
	w := NewSocialWorker(st, social.NewMockProvider(), nil)

	require.NoError(t, w.Handle(context.Background(), socialPayload(t, queue.SocialJob{TokenID: "sol:abc"})))
	first, err := st.LatestSocialSnapshot(context.Background(), "sol:abc")
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, w.Handle(context.Background(), socialPayload(t, queue.SocialJob{TokenID: "sol:abc"})))
	second, err := st.LatestSocialSnapshot(context.Background(), "sol:abc")
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.Mentions1h, second.Mentions1h)
	assert.Equal(t, first.Mentions24h, second.Mentions24h)
	assert.Equal(t, first.Slope, second.Slope)
}
