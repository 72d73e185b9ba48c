// Package ingest wires the pipeline workers: market discovery, social
// capture and scoring. Each worker is a queue handler; faults on one record
// are logged and skipped.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/market"
	"github.com/tokensage/tokensage/internal/metrics"
	"github.com/tokensage/tokensage/internal/model"
	"github.com/tokensage/tokensage/internal/queue"
	"github.com/tokensage/tokensage/internal/risk"
	"github.com/tokensage/tokensage/internal/scoring"
	"github.com/tokensage/tokensage/internal/store"
)

// MarketWorker runs market discovery jobs: fetch snapshots, persist the
// chunk atomically, then fan out social and scoring work per token.
type MarketWorker struct {
	store     store.Store
	connector *market.Connector
	risk      *risk.Analyzer
	queue     queue.Queue
	now       func() time.Time
}

// NewMarketWorker wires the market stage.
func NewMarketWorker(st store.Store, conn *market.Connector, ra *risk.Analyzer, q queue.Queue) *MarketWorker {
	return &MarketWorker{
		store:     st,
		connector: conn,
		risk:      ra,
		queue:     q,
		now:       time.Now,
	}
}

// Handle decodes and runs one market job.
func (w *MarketWorker) Handle(ctx context.Context, payload []byte) error {
	var job queue.MarketJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode market job: %w", err)
	}

	var snaps []market.Snapshot
	switch job.Kind {
	case queue.MarketJobSearch:
		found, err := w.connector.SearchPairs(ctx, job.Query)
		if err != nil {
			return fmt.Errorf("search %q: %w", job.Query, err)
		}
		snaps = found
	case queue.MarketJobTrending:
		candidates, err := w.connector.Trending(ctx)
		if err != nil {
			return fmt.Errorf("trending scan: %w", err)
		}
		for _, c := range candidates {
			snaps = append(snaps, c.Snapshot)
		}
	default:
		return fmt.Errorf("unknown market job kind %q", job.Kind)
	}
	if len(snaps) == 0 {
		log.Debug().Str("kind", job.Kind).Msg("Market job produced no snapshots")
		return nil
	}

	capturedAt := w.now()
	records := make([]store.IngestRecord, 0, len(snaps))
	for _, s := range snaps {
		records = append(records, store.IngestRecord{
			Token:    tokenFromSnapshot(s),
			Snapshot: marketSnapshot(s, capturedAt),
		})
	}
	if err := w.store.IngestChunk(ctx, records); err != nil {
		return fmt.Errorf("ingest chunk: %w", err)
	}
	metrics.TokensIngested.Add(float64(len(records)))

	for _, s := range snaps {
		tokenID := s.TokenID()
		flags := w.risk.Analyze(ctx, s.Address, s.Chain)

		if err := w.queue.Push(ctx, queue.QueueSocial, queue.SocialJob{TokenID: tokenID}); err != nil {
			log.Error().Err(err).Str("token", tokenID).Msg("Enqueue social job failed")
		}

		job := queue.ScoringJob{
			TokenID: tokenID,
			Input: scoring.Input{
				TokenID:      tokenID,
				Volume1h:     s.Volume1h,
				LiquidityUSD: s.LiquidityUSD,
				AgeMinutes:   s.AgeMinutes,
				RiskFlags:    flags.Flags(),
			},
		}
		if err := w.queue.Push(ctx, queue.QueueScoring, job); err != nil {
			log.Error().Err(err).Str("token", tokenID).Msg("Enqueue scoring job failed")
		}
	}

	log.Info().
		Str("kind", job.Kind).
		Int("tokens", len(snaps)).
		Msg("Market chunk ingested")
	return nil
}

func tokenFromSnapshot(s market.Snapshot) model.Token {
	token := model.Token{
		ID:      s.TokenID(),
		Chain:   s.Chain,
		Address: s.Address,
	}
	if s.Symbol != "" {
		symbol := s.Symbol
		token.Symbol = &symbol
	}
	return token
}

func marketSnapshot(s market.Snapshot, at time.Time) model.MarketSnapshot {
	return model.MarketSnapshot{
		TokenID:      s.TokenID(),
		Price:        s.Price,
		Volume1h:     s.Volume1h,
		Volume24h:    s.Volume24h,
		LiquidityUSD: s.LiquidityUSD,
		AgeMinutes:   s.AgeMinutes,
		CapturedAt:   at,
	}
}
