package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tokensage/tokensage/internal/model"
)

// Memory is a mutex-guarded in-memory Store.
type Memory struct {
	mu        sync.RWMutex
	tokens    map[string]model.Token
	market    map[string][]model.MarketSnapshot
	social    map[string][]model.SocialSnapshot
	posts     map[string]model.SocialPost
	signals   []model.Signal
	prophecy  []model.Prophecy
	hashes    map[string]struct{}
	signalSeq int64
	prophSeq  int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tokens: map[string]model.Token{},
		market: map[string][]model.MarketSnapshot{},
		social: map[string][]model.SocialSnapshot{},
		posts:  map[string]model.SocialPost{},
		hashes: map[string]struct{}{},
	}
}

func (m *Memory) UpsertToken(_ context.Context, token model.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertTokenLocked(token)
	return nil
}

func (m *Memory) upsertTokenLocked(token model.Token) {
	existing, ok := m.tokens[token.ID]
	if !ok {
		if token.CreatedAt.IsZero() {
			token.CreatedAt = time.Now()
		}
		m.tokens[token.ID] = token
		return
	}
	// Refresh the symbol when a connector learned one.
	if token.Symbol != nil && *token.Symbol != "" {
		existing.Symbol = token.Symbol
		m.tokens[token.ID] = existing
	}
}

func (m *Memory) IngestChunk(_ context.Context, records []IngestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.upsertTokenLocked(rec.Token)
		snap := rec.Snapshot
		snap.ID = int64(len(m.market[snap.TokenID]) + 1)
		m.market[snap.TokenID] = append(m.market[snap.TokenID], snap)
	}
	return nil
}

func (m *Memory) InsertMarketSnapshot(_ context.Context, snap model.MarketSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.ID = int64(len(m.market[snap.TokenID]) + 1)
	m.market[snap.TokenID] = append(m.market[snap.TokenID], snap)
	return nil
}

func (m *Memory) InsertSocialSnapshot(_ context.Context, snap model.SocialSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.ID = int64(len(m.social[snap.TokenID]) + 1)
	m.social[snap.TokenID] = append(m.social[snap.TokenID], snap)
	return nil
}

func (m *Memory) UpsertSocialPost(_ context.Context, post model.SocialPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ExternalID] = post
	return nil
}

func (m *Memory) InsertSignal(_ context.Context, sig *model.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signalSeq++
	sig.ID = m.signalSeq
	if sig.CapturedAt.IsZero() {
		sig.CapturedAt = time.Now()
	}
	m.signals = append(m.signals, *sig)
	return nil
}

func (m *Memory) TopSignals(_ context.Context, since time.Time, limit int) ([]model.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Signal
	for _, s := range m.signals {
		if !s.CapturedAt.Before(since) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) LatestMarketSnapshot(_ context.Context, tokenID string) (*model.MarketSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snaps := m.market[tokenID]
	if len(snaps) == 0 {
		return nil, nil
	}
	latest := snaps[0]
	for _, s := range snaps[1:] {
		if s.CapturedAt.After(latest.CapturedAt) {
			latest = s
		}
	}
	return &latest, nil
}

func (m *Memory) LatestSocialSnapshot(_ context.Context, tokenID string) (*model.SocialSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snaps := m.social[tokenID]
	if len(snaps) == 0 {
		return nil, nil
	}
	latest := snaps[0]
	for _, s := range snaps[1:] {
		if s.CapturedAt.After(latest.CapturedAt) {
			latest = s
		}
	}
	return &latest, nil
}

func (m *Memory) GetToken(_ context.Context, tokenID string) (*model.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[tokenID]
	if !ok {
		return nil, nil
	}
	return &token, nil
}

func (m *Memory) InsertProphecy(_ context.Context, p *model.Prophecy) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.hashes[p.SignalHash]; dup {
		return false, nil
	}
	m.hashes[p.SignalHash] = struct{}{}
	m.prophSeq++
	p.ID = m.prophSeq
	if p.PostedAt.IsZero() {
		p.PostedAt = time.Now()
	}
	m.prophecy = append(m.prophecy, *p)
	return true, nil
}

func (m *Memory) RecentProphecies(_ context.Context, since time.Time, limit int) ([]model.Prophecy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Prophecy
	for _, p := range m.prophecy {
		if !p.PostedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
