// Package lock provides a Redis lease so exactly one scheduler instance
// runs a prophecy cycle at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockUnavailable means another holder currently owns the lease.
var ErrLockUnavailable = errors.New("lock: unavailable")

// releaseScript deletes the lease only when the caller still owns it, so an
// expired lease taken over by someone else is never released from under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single-holder lock with a TTL.
type Lease struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	token  string
}

// NewLease creates a lease on key with the given TTL.
func NewLease(client redis.Cmdable, key string, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Lease{client: client, key: key, ttl: ttl}
}

// Acquire takes the lease. ErrLockUnavailable when someone else holds it.
func (l *Lease) Acquire(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return ErrLockUnavailable
	}
	l.token = token
	return nil
}

// Release drops the lease if this instance still owns it. Releasing a lease
// that expired or was never acquired is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
