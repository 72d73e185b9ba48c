package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/broadcast"
	"github.com/tokensage/tokensage/internal/cache"
	"github.com/tokensage/tokensage/internal/config"
	"github.com/tokensage/tokensage/internal/criteria"
	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/ingest"
	"github.com/tokensage/tokensage/internal/lock"
	"github.com/tokensage/tokensage/internal/market"
	"github.com/tokensage/tokensage/internal/narrative"
	"github.com/tokensage/tokensage/internal/prophecy"
	"github.com/tokensage/tokensage/internal/queue"
	"github.com/tokensage/tokensage/internal/ratelimit"
	"github.com/tokensage/tokensage/internal/risk"
	"github.com/tokensage/tokensage/internal/scoring"
	"github.com/tokensage/tokensage/internal/sentiment"
	"github.com/tokensage/tokensage/internal/social"
	"github.com/tokensage/tokensage/internal/store"
	"github.com/tokensage/tokensage/internal/thesis"
)

// app holds the wired components shared by the CLI commands. Offline pieces
// (memory store, memory queue) stand in when Redis or Postgres are not
// configured.
type app struct {
	config    config.Config
	redis     *redis.Client
	store     store.Store
	postgres  *store.Postgres
	registry  *ratelimit.Registry
	connector *market.Connector
	risk      *risk.Analyzer
	social    social.Provider
	sentiment *sentiment.Analyzer
	scoring   *scoring.Engine
	criteria  *criteria.Engine
	narrative *narrative.Analyzer
	thesis    *thesis.Factory
	queue     queue.Queue
	publisher broadcast.Publisher
	scheduler *prophecy.Scheduler
}

// newApp wires the application. offline forces the in-memory store and
// queue, used by the one-shot commands.
func newApp(cfg config.Config, offline bool) (*app, error) {
	a := &app{
		config:   cfg,
		registry: ratelimit.NewRegistry(),
	}

	hc := httpclient.New(cfg.HTTP)
	memCache := cache.NewMemory()

	if !offline {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		a.queue = queue.NewRedis(a.redis)
		a.publisher = broadcast.NewRedisPublisher(a.redis)
		memCache = cache.NewRedis(a.redis)
	} else {
		a.queue = queue.NewMemory(0)
		a.publisher = broadcast.NewMemoryPublisher()
	}

	if !offline && cfg.Postgres.DSN != "" {
		pg, err := store.Open(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.postgres = pg
		a.store = pg
	} else {
		log.Warn().Msg("No database configured, using in-memory store")
		a.store = store.NewMemory()
	}

	a.connector = market.NewConnector(cfg.Market, hc.WithBreaker("market"), a.registry, memCache)
	a.risk = risk.NewAnalyzer(cfg.Risk, httpclient.New(cfg.HTTP))

	provider, err := buildSocialProvider(cfg, hc, a.registry)
	if err != nil {
		return nil, err
	}
	a.social = provider

	if cfg.Sentiment.APIKey != "" {
		a.sentiment = sentiment.New(cfg.Sentiment, httpclient.New(cfg.HTTP), a.registry)
	}

	a.scoring = scoring.NewEngine(cfg.Scoring)
	a.criteria = criteria.NewEngine()
	a.narrative = narrative.NewAnalyzer()

	factory, err := thesis.NewFactory(cfg.Thesis, a.registry)
	if err != nil {
		return nil, err
	}
	a.thesis = factory

	var locker prophecy.Locker
	if a.redis != nil {
		locker = lock.NewLease(a.redis, cfg.Scheduler.LockKey, cfg.Scheduler.LockTTL)
	}
	a.scheduler = prophecy.NewScheduler(cfg.Scheduler, a.store, a.criteria, a.narrative, a.thesis, a.publisher, locker)

	return a, nil
}

func buildSocialProvider(cfg config.Config, hc *httpclient.Client, reg *ratelimit.Registry) (social.Provider, error) {
	switch cfg.Worker.SocialProvider {
	case "", "mock":
		return social.NewMockProvider(), nil
	case "http":
		return social.NewHTTPProvider(cfg.Social, hc, reg), nil
	case "scraper":
		return social.NewScraperProvider(cfg.Scraper, hc, reg), nil
	default:
		return nil, fmt.Errorf("unknown social provider %q", cfg.Worker.SocialProvider)
	}
}

// workers builds the queue workers for the pipeline stages.
func (a *app) workers() []*queue.Worker {
	marketWorker := ingest.NewMarketWorker(a.store, a.connector, a.risk, a.queue)
	socialWorker := ingest.NewSocialWorker(a.store, a.social, a.sentiment)
	scoringWorker := ingest.NewScoringWorker(a.store, a.scoring, a.publisher, a.config.Worker.MinScorePubSub)

	return []*queue.Worker{
		queue.NewWorker(a.queue, queue.QueueMarket, a.config.Worker.JobTimeout, marketWorker.Handle),
		queue.NewWorker(a.queue, queue.QueueSocial, a.config.Worker.JobTimeout, socialWorker.Handle),
		queue.NewWorker(a.queue, queue.QueueScoring, a.config.Worker.JobTimeout, scoringWorker.Handle),
	}
}

// close releases held connections.
func (a *app) close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
