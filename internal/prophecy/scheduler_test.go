package prophecy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokensage/tokensage/internal/broadcast"
	"github.com/tokensage/tokensage/internal/criteria"
	"github.com/tokensage/tokensage/internal/lock"
	"github.com/tokensage/tokensage/internal/model"
	"github.com/tokensage/tokensage/internal/narrative"
	"github.com/tokensage/tokensage/internal/ratelimit"
	"github.com/tokensage/tokensage/internal/store"
	"github.com/tokensage/tokensage/internal/thesis"
)

func testScheduler(t *testing.T, st store.Store, pub broadcast.Publisher, locker Locker) *Scheduler {
	t.Helper()
	factory, err := thesis.NewFactory(thesis.DefaultFactoryConfig(), ratelimit.NewRegistry())
	require.NoError(t, err)
	return NewScheduler(DefaultConfig(), st, criteria.NewEngine(), narrative.NewAnalyzer(), factory, pub, locker)
}

// seedCandidate stores a signal plus the snapshots a mint needs. The fixture
// matches the early-momentum rule.
func seedCandidate(t *testing.T, st store.Store, tokenID string, score float64) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.InsertSignal(ctx, &model.Signal{
		TokenID:    tokenID,
		Score:      score,
		Label:      model.LabelHypeBuilding,
		Reasons:    []string{"volume spike"},
		CapturedAt: now,
	}))
	require.NoError(t, st.InsertMarketSnapshot(ctx, model.MarketSnapshot{
		TokenID:    tokenID,
		Price:      0.5,
		Volume24h:  150000,
		AgeMinutes: 120,
		CapturedAt: now,
	}))
	require.NoError(t, st.InsertSocialSnapshot(ctx, model.SocialSnapshot{
		TokenID:     tokenID,
		Mentions1h:  30,
		Mentions24h: 400,
		Slope:       0.3,
		CapturedAt:  now,
	}))
}

func TestScheduler_MintsRankedProphecies(t *testing.T) {
	st := store.NewMemory()
	pub := broadcast.NewMemoryPublisher()
	s := testScheduler(t, st, pub, nil)

	seedCandidate(t, st, "sol:a", 3.5)
	seedCandidate(t, st, "sol:b", 2.8)

	created, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 2)

	assert.Equal(t, "sol:a", created[0].TokenID)
	assert.Equal(t, 1, created[0].Rank)
	assert.Equal(t, "sol:b", created[1].TokenID)
	assert.Equal(t, 2, created[1].Rank)
	assert.Contains(t, created[0].CriteriaMatched, "early-momentum")
	assert.NotEmpty(t, created[0].ThesisText)
	assert.Equal(t, model.SignalHash("sol:a", 3.5, 1), created[0].SignalHash)

	msgs := pub.Messages(broadcast.TopicProphecies)
	require.Len(t, msgs, 1)
	var batch []model.Prophecy
	require.NoError(t, json.Unmarshal(msgs[0], &batch))
	assert.Len(t, batch, 2)
}

func TestScheduler_CapsPropheciesPerRun(t *testing.T) {
	st := store.NewMemory()
	s := testScheduler(t, st, nil, nil)

	for _, id := range []string{"sol:a", "sol:b", "sol:c", "sol:d", "sol:e"} {
		seedCandidate(t, st, id, 3.0)
	}

	created, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 3)
}

func TestScheduler_SecondRunAbsorbsDuplicates(t *testing.T) {
	st := store.NewMemory()
	s := testScheduler(t, st, nil, nil)

	seedCandidate(t, st, "sol:a", 3.5)

	first, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Nothing changed between runs: the same {token, score, rank} hashes
	// identically and the insert is absorbed.
	second, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)

	all, err := st.RecentProphecies(context.Background(), time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestScheduler_RankConsumedOnlyByCreation(t *testing.T) {
	st := store.NewMemory()
	s := testScheduler(t, st, nil, nil)
	ctx := context.Background()

	// Highest-scoring signal has no snapshots and must be skipped without
	// consuming rank 1.
	require.NoError(t, st.InsertSignal(ctx, &model.Signal{
		TokenID:    "sol:bare",
		Score:      4.9,
		Label:      model.LabelHypeBuilding,
		CapturedAt: time.Now(),
	}))
	seedCandidate(t, st, "sol:full", 3.0)

	created, err := s.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "sol:full", created[0].TokenID)
	assert.Equal(t, 1, created[0].Rank)
}

func TestScheduler_SkipsCandidatesFailingCriteria(t *testing.T) {
	st := store.NewMemory()
	s := testScheduler(t, st, nil, nil)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.InsertSignal(ctx, &model.Signal{
		TokenID:    "sol:quiet",
		Score:      3.0,
		Label:      model.LabelWhalePlay,
		CapturedAt: now,
	}))
	// Snapshots exist but match no rule: low volume, low liquidity, no
	// social breakout.
	require.NoError(t, st.InsertMarketSnapshot(ctx, model.MarketSnapshot{
		TokenID:    "sol:quiet",
		Price:      0.01,
		Volume24h:  5000,
		AgeMinutes: 2000,
		CapturedAt: now,
	}))
	require.NoError(t, st.InsertSocialSnapshot(ctx, model.SocialSnapshot{
		TokenID:     "sol:quiet",
		Mentions24h: 20,
		CapturedAt:  now,
	}))

	created, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, created)
}

type stubLocker struct {
	acquireErr error
	acquired   int
	released   int
}

func (l *stubLocker) Acquire(context.Context) error {
	l.acquired++
	return l.acquireErr
}

func (l *stubLocker) Release(context.Context) error {
	l.released++
	return nil
}

func TestScheduler_SkipsRunWhenLockHeld(t *testing.T) {
	st := store.NewMemory()
	seedCandidate(t, st, "sol:a", 3.5)

	locker := &stubLocker{acquireErr: lock.ErrLockUnavailable}
	s := testScheduler(t, st, nil, locker)

	created, err := s.RunOnce(context.Background())
	require.NoError(t, err, "a held lock is not an error")
	assert.Empty(t, created)
	assert.Equal(t, 1, locker.acquired)
	assert.Zero(t, locker.released)
}

func TestScheduler_ReleasesLockAfterRun(t *testing.T) {
	st := store.NewMemory()
	seedCandidate(t, st, "sol:a", 3.5)

	locker := &stubLocker{}
	s := testScheduler(t, st, nil, locker)

	created, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestScheduler_NoSignalsNoProphecies(t *testing.T) {
	st := store.NewMemory()
	s := testScheduler(t, st, nil, nil)

	created, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, created)
}
