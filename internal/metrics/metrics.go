// Package metrics exposes the Prometheus instrumentation and the small HTTP
// server that serves it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts jobs finished per queue, by outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokensage_jobs_processed_total",
			Help: "Total jobs processed by queue and result",
		},
		[]string{"queue", "result"},
	)

	// UpstreamRequests counts outbound API calls per upstream, by outcome.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokensage_upstream_requests_total",
			Help: "Total upstream API requests by source and result",
		},
		[]string{"source", "result"},
	)

	// TokensIngested counts tokens written by market discovery.
	TokensIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokensage_tokens_ingested_total",
			Help: "Total tokens ingested from market discovery",
		},
	)

	// PostsAnalyzed counts posts that got a non-neutral sentiment read.
	PostsAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokensage_posts_analyzed_total",
			Help: "Total social posts analyzed for sentiment",
		},
	)

	// SignalsScored counts persisted signals by label.
	SignalsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokensage_signals_scored_total",
			Help: "Total signals scored by label",
		},
		[]string{"label"},
	)

	// PropheciesCreated counts prophecies minted by the scheduler.
	PropheciesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokensage_prophecies_created_total",
			Help: "Total prophecies created",
		},
	)

	// SchedulerRuns counts prophecy scheduler cycles by outcome.
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokensage_scheduler_runs_total",
			Help: "Total prophecy scheduler runs by result",
		},
		[]string{"result"},
	)

	// ProviderHealth reports thesis backend health (1 healthy, 0 not).
	ProviderHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tokensage_thesis_provider_health",
			Help: "Thesis provider health by provider name",
		},
		[]string{"provider"},
	)
)
