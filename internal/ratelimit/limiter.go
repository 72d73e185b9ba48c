package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tokensage/tokensage/internal/metrics"
)

// ErrRateLimitTimeout is returned when a scheduled task could not be admitted
// before its timeout elapsed. The task is removed from the wait queue.
var ErrRateLimitTimeout = errors.New("ratelimit: queue timeout")

// Bucket is a token-bucket gate for one logical upstream source. Tokens
// refill at reqPerMin/60 per second and waiters drain in FIFO order.
type Bucket struct {
	key     string
	limiter *rate.Limiter
}

// Key returns the logical source name this bucket gates.
func (b *Bucket) Key() string { return b.key }

// Schedule runs fn once a token is available, consuming one token. If no
// token can be acquired within timeout the task fails with
// ErrRateLimitTimeout without running. fn itself runs under the caller's
// context, not the admission timeout.
func (b *Bucket) Schedule(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := b.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() == nil {
			metrics.UpstreamRequests.WithLabelValues(b.key, "timeout").Inc()
			return ErrRateLimitTimeout
		}
		return ctx.Err()
	}

	err := fn(ctx)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(b.key, "error").Inc()
		return err
	}
	metrics.UpstreamRequests.WithLabelValues(b.key, "ok").Inc()
	return nil
}

// Allow reports whether a token is immediately available, consuming it.
func (b *Bucket) Allow() bool { return b.limiter.Allow() }

// Registry owns the process-wide set of named buckets. Unrelated components
// sharing an upstream share a limit by asking for the same key. The registry
// is constructed once per process and passed by injection; there is no
// package-level instance.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
}

// NewRegistry creates an empty bucket registry.
func NewRegistry() *Registry {
	return &Registry{buckets: make(map[string]*Bucket)}
}

// Bucket returns the bucket for key, creating it with the given refill rate
// and capacity on first use. Later calls with the same key return the
// original bucket regardless of the rate arguments.
func (r *Registry) Bucket(key string, reqPerMin float64, capacity int) *Bucket {
	r.mu.RLock()
	b, ok := r.buckets[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if b, ok := r.buckets[key]; ok {
		return b
	}

	b = &Bucket{
		key:     key,
		limiter: rate.NewLimiter(rate.Limit(reqPerMin/60.0), capacity),
	}
	r.buckets[key] = b
	return b
}

// Keys returns the registered bucket keys, for diagnostics.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.buckets))
	for k := range r.buckets {
		keys = append(keys, k)
	}
	return keys
}
