package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/broadcast"
	"github.com/tokensage/tokensage/internal/metrics"
	"github.com/tokensage/tokensage/internal/model"
	"github.com/tokensage/tokensage/internal/queue"
	"github.com/tokensage/tokensage/internal/scoring"
	"github.com/tokensage/tokensage/internal/store"
)

// ScoringWorker merges the latest social read into a job's market features,
// scores the token and persists the signal.
type ScoringWorker struct {
	store     store.Store
	engine    *scoring.Engine
	publisher broadcast.Publisher
	minScore  float64
	now       func() time.Time
}

// NewScoringWorker wires the scoring stage. Signals scoring at or above
// minScore are published live.
func NewScoringWorker(st store.Store, engine *scoring.Engine, pub broadcast.Publisher, minScore float64) *ScoringWorker {
	return &ScoringWorker{
		store:     st,
		engine:    engine,
		publisher: pub,
		minScore:  minScore,
		now:       time.Now,
	}
}

// Handle decodes and runs one scoring job.
func (w *ScoringWorker) Handle(ctx context.Context, payload []byte) error {
	var job queue.ScoringJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode scoring job: %w", err)
	}
	in := job.Input
	in.TokenID = job.TokenID

	// Social data may have landed since the job was enqueued.
	social, err := w.store.LatestSocialSnapshot(ctx, job.TokenID)
	if err != nil {
		return fmt.Errorf("latest social %s: %w", job.TokenID, err)
	}
	if social != nil {
		in.Mentions1h = social.Mentions1h
		in.Slope = social.Slope
	}

	chain, address := model.SplitTokenID(job.TokenID)
	if err := w.store.UpsertToken(ctx, model.Token{ID: job.TokenID, Chain: chain, Address: address}); err != nil {
		return fmt.Errorf("ensure token %s: %w", job.TokenID, err)
	}

	result := w.engine.Score(in)
	sig := model.Signal{
		TokenID:    job.TokenID,
		Score:      result.Score,
		Label:      result.Label,
		Reasons:    result.Reasons,
		CapturedAt: w.now(),
	}
	if err := w.store.InsertSignal(ctx, &sig); err != nil {
		return fmt.Errorf("insert signal %s: %w", job.TokenID, err)
	}
	metrics.SignalsScored.WithLabelValues(string(sig.Label)).Inc()

	if w.publisher != nil && sig.Score >= w.minScore {
		if err := w.publisher.Publish(ctx, broadcast.TopicSignals, sig); err != nil {
			log.Error().Err(err).Str("token", job.TokenID).Msg("Publish live signal failed")
		}
	}

	log.Debug().
		Str("token", job.TokenID).
		Float64("score", sig.Score).
		Str("label", string(sig.Label)).
		Msg("Token scored")
	return nil
}
