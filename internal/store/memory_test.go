package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokensage/tokensage/internal/model"
)

func TestMemory_UpsertTokenKeepsSymbol(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	sym := "WIF"
	require.NoError(t, m.UpsertToken(ctx, model.Token{ID: "sol:abc", Chain: "sol", Address: "abc", Symbol: &sym}))

	// A later sighting without a symbol must not erase the known one.
	require.NoError(t, m.UpsertToken(ctx, model.Token{ID: "sol:abc", Chain: "sol", Address: "abc"}))

	token, err := m.GetToken(ctx, "sol:abc")
	require.NoError(t, err)
	require.NotNil(t, token)
	require.NotNil(t, token.Symbol)
	assert.Equal(t, "WIF", *token.Symbol)
}

func TestMemory_GetTokenMissing(t *testing.T) {
	m := NewMemory()
	token, err := m.GetToken(context.Background(), "sol:nope")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestMemory_LatestSnapshotPicksNewest(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.InsertMarketSnapshot(ctx, model.MarketSnapshot{TokenID: "sol:abc", Price: 1.0, CapturedAt: base}))
	require.NoError(t, m.InsertMarketSnapshot(ctx, model.MarketSnapshot{TokenID: "sol:abc", Price: 2.0, CapturedAt: base.Add(time.Hour)}))
	require.NoError(t, m.InsertMarketSnapshot(ctx, model.MarketSnapshot{TokenID: "sol:abc", Price: 1.5, CapturedAt: base.Add(30 * time.Minute)}))

	snap, err := m.LatestMarketSnapshot(ctx, "sol:abc")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2.0, snap.Price)

	missing, err := m.LatestMarketSnapshot(ctx, "sol:other")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemory_TopSignalsOrderAndWindow(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	insert := func(tokenID string, score float64, at time.Time) {
		require.NoError(t, m.InsertSignal(ctx, &model.Signal{
			TokenID:    tokenID,
			Score:      score,
			Label:      model.LabelWhalePlay,
			CapturedAt: at,
		}))
	}
	insert("sol:a", 1.0, now)
	insert("sol:b", 3.2, now)
	insert("sol:c", 2.1, now)
	insert("sol:old", 4.9, now.Add(-48*time.Hour)) // outside the window

	out, err := m.TopSignals(ctx, now.Add(-24*time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "sol:b", out[0].TokenID)
	assert.Equal(t, "sol:c", out[1].TokenID)
}

func TestMemory_InsertProphecyDedupesByHash(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	hash := model.SignalHash("sol:abc", 3.2, 1)

	created, err := m.InsertProphecy(ctx, &model.Prophecy{TokenID: "sol:abc", SignalHash: hash, Score: 3.2, Rank: 1})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.InsertProphecy(ctx, &model.Prophecy{TokenID: "sol:abc", SignalHash: hash, Score: 3.2, Rank: 1})
	require.NoError(t, err)
	assert.False(t, created, "same hash must not mint twice")

	out, err := m.RecentProphecies(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestMemory_IngestChunkStoresTokensAndSnapshots(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	records := []IngestRecord{
		{
			Token:    model.Token{ID: "sol:abc", Chain: "sol", Address: "abc"},
			Snapshot: model.MarketSnapshot{TokenID: "sol:abc", Price: 0.5, CapturedAt: now},
		},
		{
			Token:    model.Token{ID: "eth:def", Chain: "eth", Address: "def"},
			Snapshot: model.MarketSnapshot{TokenID: "eth:def", Price: 1.5, CapturedAt: now},
		},
	}
	require.NoError(t, m.IngestChunk(ctx, records))

	token, err := m.GetToken(ctx, "eth:def")
	require.NoError(t, err)
	require.NotNil(t, token)

	snap, err := m.LatestMarketSnapshot(ctx, "sol:abc")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 0.5, snap.Price)
}
