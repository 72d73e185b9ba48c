package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/metrics"
	"github.com/tokensage/tokensage/internal/model"
	"github.com/tokensage/tokensage/internal/queue"
	"github.com/tokensage/tokensage/internal/sentiment"
	"github.com/tokensage/tokensage/internal/social"
	"github.com/tokensage/tokensage/internal/store"
)

// SocialWorker captures mentions for one token, runs sentiment over the raw
// posts when an analyzer is configured, and persists the snapshot.
type SocialWorker struct {
	store    store.Store
	provider social.Provider
	analyzer *sentiment.Analyzer // nil disables sentiment
	now      func() time.Time
}

// NewSocialWorker wires the social stage. analyzer may be nil.
func NewSocialWorker(st store.Store, provider social.Provider, analyzer *sentiment.Analyzer) *SocialWorker {
	return &SocialWorker{
		store:    st,
		provider: provider,
		analyzer: analyzer,
		now:      time.Now,
	}
}

// Handle decodes and runs one social job.
func (w *SocialWorker) Handle(ctx context.Context, payload []byte) error {
	var job queue.SocialJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode social job: %w", err)
	}

	mentions, err := w.fetch(ctx, job.TokenID)
	if err != nil {
		return fmt.Errorf("social fetch %s: %w", job.TokenID, err)
	}

	snap := model.SocialSnapshot{
		TokenID:     job.TokenID,
		Mentions1h:  mentions.Mentions1h,
		Mentions24h: mentions.Mentions24h,
		Slope:       mentions.Slope,
		CapturedAt:  w.now(),
	}

	if w.analyzer != nil && w.analyzer.Enabled() && len(mentions.Posts) > 0 {
		w.applySentiment(ctx, mentions.Posts, &snap)
	}

	for _, post := range mentions.Posts {
		if post.ExternalID == "" {
			continue
		}
		if err := w.store.UpsertSocialPost(ctx, post); err != nil {
			log.Error().Err(err).Str("post", post.ExternalID).Msg("Upsert social post failed")
		}
	}

	if err := w.store.InsertSocialSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("insert social snapshot %s: %w", job.TokenID, err)
	}
	log.Debug().
		Str("token", job.TokenID).
		Int("mentions_24h", snap.Mentions24h).
		Int("posts", len(mentions.Posts)).
		Msg("Social snapshot captured")
	return nil
}

// fetch prefers symbol search when the provider supports it and the token
// has a known symbol.
func (w *SocialWorker) fetch(ctx context.Context, tokenID string) (*social.Mentions, error) {
	if sf, ok := w.provider.(social.SymbolFetcher); ok {
		token, err := w.store.GetToken(ctx, tokenID)
		if err != nil {
			return nil, err
		}
		if token != nil && token.Symbol != nil && *token.Symbol != "" {
			return sf.FetchBySymbol(ctx, tokenID, *token.Symbol)
		}
	}
	return w.provider.Fetch(ctx, tokenID)
}

// applySentiment scores the posts and folds the aggregate into the snapshot.
// Posts are annotated in place so the upserts below carry their labels.
func (w *SocialWorker) applySentiment(ctx context.Context, posts []model.SocialPost, snap *model.SocialSnapshot) {
	texts := make([]string, len(posts))
	for i, p := range posts {
		texts[i] = p.Text
	}

	results, err := w.analyzer.AnalyzeBatch(ctx, texts)
	if err != nil {
		log.Warn().Err(err).Str("token", snap.TokenID).Msg("Sentiment analysis skipped")
		return
	}

	for i := range posts {
		if results[i].Confidence <= 0 {
			continue
		}
		label := results[i].Label
		score := results[i].Score
		posts[i].SentimentLabel = &label
		posts[i].SentimentScore = &score
	}

	agg := sentiment.Aggregate(results)
	if agg.TotalAnalyzed == 0 {
		return
	}
	snap.SentimentScore = &agg.AverageScore
	snap.PositiveRatio = &agg.PositiveRatio
	snap.NegativeRatio = &agg.NegativeRatio
	snap.SentimentAnalyzed = &agg.TotalAnalyzed
	metrics.PostsAnalyzed.Add(float64(agg.TotalAnalyzed))
}
