package lock

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLease_AcquireAndRelease(t *testing.T) {
	client, mock := redismock.NewClientMock()
	lease := NewLease(client, "locks:prophecy", 5*time.Minute)
	ctx := context.Background()

	mock.Regexp().ExpectSetNX("locks:prophecy", `.+`, 5*time.Minute).SetVal(true)
	require.NoError(t, lease.Acquire(ctx))

	mock.Regexp().ExpectEvalSha(releaseScript.Hash(), []string{"locks:prophecy"}, `.+`).SetVal(int64(1))
	require.NoError(t, lease.Release(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLease_AcquireHeldElsewhere(t *testing.T) {
	client, mock := redismock.NewClientMock()
	lease := NewLease(client, "locks:prophecy", 5*time.Minute)

	mock.Regexp().ExpectSetNX("locks:prophecy", `.+`, 5*time.Minute).SetVal(false)

	err := lease.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLease_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	client, mock := redismock.NewClientMock()
	lease := NewLease(client, "locks:prophecy", 5*time.Minute)

	// No expectations registered: Release must not talk to Redis.
	require.NoError(t, lease.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLease_ReleaseIsIdempotent(t *testing.T) {
	client, mock := redismock.NewClientMock()
	lease := NewLease(client, "locks:prophecy", 5*time.Minute)
	ctx := context.Background()

	mock.Regexp().ExpectSetNX("locks:prophecy", `.+`, 5*time.Minute).SetVal(true)
	require.NoError(t, lease.Acquire(ctx))

	mock.Regexp().ExpectEvalSha(releaseScript.Hash(), []string{"locks:prophecy"}, `.+`).SetVal(int64(0))
	require.NoError(t, lease.Release(ctx))

	// The second release finds no held token and stays local.
	require.NoError(t, lease.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
