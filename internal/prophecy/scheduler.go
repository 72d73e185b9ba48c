// Package prophecy selects the strongest recent signals and mints ranked,
// explained prophecies for them on a fixed cadence.
package prophecy

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/broadcast"
	"github.com/tokensage/tokensage/internal/criteria"
	"github.com/tokensage/tokensage/internal/lock"
	"github.com/tokensage/tokensage/internal/metrics"
	"github.com/tokensage/tokensage/internal/model"
	"github.com/tokensage/tokensage/internal/narrative"
	"github.com/tokensage/tokensage/internal/store"
	"github.com/tokensage/tokensage/internal/thesis"
)

// Config controls the scheduler cadence and selection.
type Config struct {
	Cadence    time.Duration `yaml:"cadence"`
	Window     time.Duration `yaml:"window"`
	MaxPerRun  int           `yaml:"max_per_run"`
	CandidateN int           `yaml:"candidate_n"`
	LockKey    string        `yaml:"lock_key"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

// DefaultConfig returns the scheduler defaults: hourly runs over a trailing
// 24h signal window, at most 3 prophecies per run.
func DefaultConfig() Config {
	return Config{
		Cadence:    time.Hour,
		Window:     24 * time.Hour,
		MaxPerRun:  3,
		CandidateN: 10,
		LockKey:    "locks:prophecy",
		LockTTL:    5 * time.Minute,
	}
}

// Locker is the single-holder lease the scheduler runs under.
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Scheduler mints prophecies from recent signals.
type Scheduler struct {
	config    Config
	store     store.Store
	criteria  *criteria.Engine
	narrative *narrative.Analyzer
	factory   *thesis.Factory
	publisher broadcast.Publisher
	locker    Locker
	now       func() time.Time
}

// NewScheduler wires the prophecy stage. locker may be nil for single-node
// runs, e.g. `prophecy --once` against a memory store.
func NewScheduler(config Config, st store.Store, ce *criteria.Engine, na *narrative.Analyzer, factory *thesis.Factory, pub broadcast.Publisher, locker Locker) *Scheduler {
	if config.Cadence <= 0 {
		config.Cadence = DefaultConfig().Cadence
	}
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	if config.MaxPerRun <= 0 {
		config.MaxPerRun = DefaultConfig().MaxPerRun
	}
	if config.CandidateN < config.MaxPerRun {
		config.CandidateN = config.MaxPerRun
	}
	return &Scheduler{
		config:    config,
		store:     st,
		criteria:  ce,
		narrative: na,
		factory:   factory,
		publisher: pub,
		locker:    locker,
		now:       time.Now,
	}
}

// Run executes RunOnce on the configured cadence until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Cadence)
	defer ticker.Stop()
	log.Info().Dur("cadence", s.config.Cadence).Msg("Prophecy scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Prophecy scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Prophecy run failed")
			}
		}
	}
}

// RunOnce executes one full cycle and returns the prophecies it created.
// A held lock elsewhere skips the run without error.
func (s *Scheduler) RunOnce(ctx context.Context) ([]model.Prophecy, error) {
	if s.locker != nil {
		if err := s.locker.Acquire(ctx); err != nil {
			if errors.Is(err, lock.ErrLockUnavailable) {
				log.Debug().Msg("Prophecy run skipped, lock held elsewhere")
				metrics.SchedulerRuns.WithLabelValues("skipped").Inc()
				return nil, nil
			}
			metrics.SchedulerRuns.WithLabelValues("error").Inc()
			return nil, err
		}
		defer s.locker.Release(ctx)
	}

	created, err := s.cycle(ctx)
	if err != nil {
		metrics.SchedulerRuns.WithLabelValues("error").Inc()
		return created, err
	}
	metrics.SchedulerRuns.WithLabelValues("ok").Inc()

	if len(created) > 0 && s.publisher != nil {
		if err := s.publisher.Publish(ctx, broadcast.TopicProphecies, created); err != nil {
			log.Error().Err(err).Msg("Publish prophecy batch failed")
		}
	}
	return created, nil
}

func (s *Scheduler) cycle(ctx context.Context) ([]model.Prophecy, error) {
	since := s.now().Add(-s.config.Window)
	signals, err := s.store.TopSignals(ctx, since, s.config.CandidateN)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		log.Debug().Msg("No signals in window, nothing to prophesy")
		return nil, nil
	}

	var created []model.Prophecy
	rank := 1
	for _, sig := range signals {
		if len(created) >= s.config.MaxPerRun {
			break
		}

		prophecy, ok, err := s.mint(ctx, sig, rank)
		if err != nil {
			log.Error().Err(err).Str("token", sig.TokenID).Msg("Prophecy candidate failed")
			continue
		}
		if !ok {
			continue
		}
		created = append(created, *prophecy)
		// The rank is consumed only by an actual creation; duplicates and
		// skipped candidates leave it for the next token.
		rank++
	}

	log.Info().Int("created", len(created)).Int("candidates", len(signals)).Msg("Prophecy run complete")
	return created, nil
}

// mint builds and persists one prophecy. ok=false means the candidate was
// skipped: missing snapshots, no criteria match, or an already-minted hash.
func (s *Scheduler) mint(ctx context.Context, sig model.Signal, rank int) (*model.Prophecy, bool, error) {
	marketSnap, err := s.store.LatestMarketSnapshot(ctx, sig.TokenID)
	if err != nil {
		return nil, false, err
	}
	socialSnap, err := s.store.LatestSocialSnapshot(ctx, sig.TokenID)
	if err != nil {
		return nil, false, err
	}
	if marketSnap == nil || socialSnap == nil {
		log.Debug().Str("token", sig.TokenID).Msg("Candidate skipped, snapshots incomplete")
		return nil, false, nil
	}

	eval := s.criteria.Evaluate(criteria.Input{Market: marketSnap, Social: socialSnap})
	if !eval.Passed {
		log.Debug().Str("token", sig.TokenID).Msg("Candidate skipped, no criteria matched")
		return nil, false, nil
	}

	var symbol *string
	if token, err := s.store.GetToken(ctx, sig.TokenID); err == nil && token != nil {
		symbol = token.Symbol
	}

	signals := s.narrative.Analyze(socialSnap, symbol)
	generation, err := s.generate(ctx, thesis.TokenData{
		Symbol:    symbol,
		Price:     marketSnap.Price,
		Liquidity: marketSnap.LiquidityUSD,
		Volume24h: marketSnap.Volume24h,
	}, eval.Matched, signals)
	if err != nil {
		return nil, false, err
	}

	prophecy := &model.Prophecy{
		TokenID:         sig.TokenID,
		SignalHash:      model.SignalHash(sig.TokenID, sig.Score, rank),
		Score:           sig.Score,
		Rank:            rank,
		CriteriaMatched: eval.Matched,
		NarrativeScore:  signals.Coherence,
		SocialThemes:    signals.Themes,
		ThesisText:      generation.Thesis,
		PostedAt:        s.now(),
	}

	createdNew, err := s.store.InsertProphecy(ctx, prophecy)
	if err != nil {
		return nil, false, err
	}
	if !createdNew {
		log.Debug().Str("token", sig.TokenID).Str("hash", prophecy.SignalHash).Msg("Prophecy already minted")
		return nil, false, nil
	}
	metrics.PropheciesCreated.Inc()

	log.Info().
		Str("token", sig.TokenID).
		Int("rank", rank).
		Float64("score", sig.Score).
		Str("provider", generation.Provider).
		Msg("Prophecy created")
	return prophecy, true, nil
}

// generate runs the default thesis backend. A generation failure falls back
// to rule-based; an unavailable default with fallback disabled fails the
// candidate.
func (s *Scheduler) generate(ctx context.Context, token thesis.TokenData, matched []string, signals narrative.Signals) (*thesis.Generation, error) {
	provider, err := s.factory.DefaultProvider()
	if err != nil {
		return nil, err
	}

	generation, genErr := provider.GenerateThesis(ctx, token, matched, signals)
	if genErr == nil {
		return generation, nil
	}
	log.Warn().Err(genErr).Str("provider", provider.Name()).Msg("Thesis generation failed, using fallback")

	return s.factory.Fallback().GenerateThesis(ctx, token, matched, signals)
}
