// Package store persists tokens, snapshots, signals and prophecies. The
// postgres implementation is the production backend; the memory
// implementation serves tests and offline runs.
package store

import (
	"context"
	"time"

	"github.com/tokensage/tokensage/internal/model"
)

// IngestRecord is one token plus its market snapshot, committed atomically
// by IngestChunk.
type IngestRecord struct {
	Token    model.Token
	Snapshot model.MarketSnapshot
}

// Store is the persistence surface the pipeline depends on.
//
// Latest* methods return (nil, nil) when the token has no snapshot yet, so
// callers can skip incomplete candidates without error plumbing.
// InsertProphecy reports created=false with a nil error when the signal hash
// already exists; duplicates are an expected outcome, not a failure.
type Store interface {
	UpsertToken(ctx context.Context, token model.Token) error
	IngestChunk(ctx context.Context, records []IngestRecord) error

	InsertMarketSnapshot(ctx context.Context, snap model.MarketSnapshot) error
	InsertSocialSnapshot(ctx context.Context, snap model.SocialSnapshot) error
	UpsertSocialPost(ctx context.Context, post model.SocialPost) error

	InsertSignal(ctx context.Context, sig *model.Signal) error
	TopSignals(ctx context.Context, since time.Time, limit int) ([]model.Signal, error)

	LatestMarketSnapshot(ctx context.Context, tokenID string) (*model.MarketSnapshot, error)
	LatestSocialSnapshot(ctx context.Context, tokenID string) (*model.SocialSnapshot, error)
	GetToken(ctx context.Context, tokenID string) (*model.Token, error)

	InsertProphecy(ctx context.Context, p *model.Prophecy) (created bool, err error)
	RecentProphecies(ctx context.Context, since time.Time, limit int) ([]model.Prophecy, error)
}
