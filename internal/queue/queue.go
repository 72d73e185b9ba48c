// Package queue provides named at-least-once job queues on Redis lists,
// plus an in-memory implementation for tests and offline runs.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tokensage/tokensage/internal/scoring"
)

// Queue names used by the pipeline.
const (
	QueueMarket  = "jobs:market"
	QueueSocial  = "jobs:social"
	QueueScoring = "jobs:scoring"
)

// Market job kinds.
const (
	MarketJobSearch   = "search"
	MarketJobTrending = "trending"
)

// MarketJob asks the market worker to run a search query or a trending scan.
type MarketJob struct {
	Kind  string `json:"kind"`
	Query string `json:"query,omitempty"`
}

// SocialJob asks the social worker to capture mentions for one token.
type SocialJob struct {
	TokenID string `json:"token_id"`
}

// ScoringJob asks the scoring worker to score one token. Input carries the
// market-derived features captured at enqueue time; the worker merges in the
// latest social snapshot when it runs.
type ScoringJob struct {
	TokenID string        `json:"token_id"`
	Input   scoring.Input `json:"input"`
}

// ErrEmpty is returned by Pop when no job arrived within the wait window.
var ErrEmpty = errors.New("queue: empty")

// Queue is a named FIFO job queue with blocking pops.
type Queue interface {
	Push(ctx context.Context, name string, payload any) error
	Pop(ctx context.Context, name string, wait time.Duration) ([]byte, error)
	Len(ctx context.Context, name string) (int64, error)
}

// Redis implements Queue on Redis lists: LPUSH to enqueue, BRPOP to drain,
// so jobs come out in arrival order.
type Redis struct {
	client redis.Cmdable
}

// NewRedis wraps a Redis client.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

func (q *Redis) Push(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode job for %s: %w", name, err)
	}
	if err := q.client.LPush(ctx, name, data).Err(); err != nil {
		return fmt.Errorf("push %s: %w", name, err)
	}
	return nil
}

func (q *Redis) Pop(ctx context.Context, name string, wait time.Duration) ([]byte, error) {
	res, err := q.client.BRPop(ctx, wait, name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("pop %s: %w", name, err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("pop %s: unexpected reply %v", name, res)
	}
	return []byte(res[1]), nil
}

func (q *Redis) Len(ctx context.Context, name string) (int64, error) {
	n, err := q.client.LLen(ctx, name).Result()
	if err != nil {
		return 0, fmt.Errorf("len %s: %w", name, err)
	}
	return n, nil
}
