package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tokensage/tokensage/internal/model"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DefaultPostgresConfig returns reasonable pool defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    10 * time.Second,
	}
}

// Postgres is the sqlx-backed Store.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects and pings the database.
func Open(config PostgresConfig) (*Postgres, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("store: dsn is required")
	}
	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgres(db, config.QueryTimeout), nil
}

// NewPostgres wraps an existing connection, mainly for tests.
func NewPostgres(db *sqlx.DB, timeout time.Duration) *Postgres {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Postgres{db: db, timeout: timeout}
}

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// Ping verifies connectivity.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) UpsertToken(ctx context.Context, token model.Token) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO tokens (id, chain, address, symbol)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET symbol = COALESCE(NULLIF(EXCLUDED.symbol, ''), tokens.symbol)`,
		token.ID, token.Chain, token.Address, token.Symbol)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", token.ID, err)
	}
	return nil
}

// IngestChunk commits token upserts plus market snapshots in one transaction
// so a partially ingested chunk never becomes visible.
func (p *Postgres) IngestChunk(ctx context.Context, records []IngestRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout*time.Duration(len(records)/100+1))
	defer cancel()

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest tx: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tokens (id, chain, address, symbol)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET symbol = COALESCE(NULLIF(EXCLUDED.symbol, ''), tokens.symbol)`,
			rec.Token.ID, rec.Token.Chain, rec.Token.Address, rec.Token.Symbol); err != nil {
			return fmt.Errorf("ingest token %s: %w", rec.Token.ID, err)
		}
		s := rec.Snapshot
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO market_snapshots (token_id, price, volume_1h, volume_24h, liquidity_usd, age_minutes, captured_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.TokenID, s.Price, s.Volume1h, s.Volume24h, s.LiquidityUSD, s.AgeMinutes, s.CapturedAt); err != nil {
			return fmt.Errorf("ingest snapshot %s: %w", s.TokenID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest tx: %w", err)
	}
	return nil
}

func (p *Postgres) InsertMarketSnapshot(ctx context.Context, snap model.MarketSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO market_snapshots (token_id, price, volume_1h, volume_24h, liquidity_usd, age_minutes, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.TokenID, snap.Price, snap.Volume1h, snap.Volume24h, snap.LiquidityUSD, snap.AgeMinutes, snap.CapturedAt)
	if err != nil {
		return fmt.Errorf("insert market snapshot %s: %w", snap.TokenID, err)
	}
	return nil
}

func (p *Postgres) InsertSocialSnapshot(ctx context.Context, snap model.SocialSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO social_snapshots (token_id, mentions_1h, mentions_24h, slope, sentiment_score, positive_ratio, negative_ratio, sentiment_analyzed, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		snap.TokenID, snap.Mentions1h, snap.Mentions24h, snap.Slope,
		snap.SentimentScore, snap.PositiveRatio, snap.NegativeRatio, snap.SentimentAnalyzed, snap.CapturedAt)
	if err != nil {
		return fmt.Errorf("insert social snapshot %s: %w", snap.TokenID, err)
	}
	return nil
}

func (p *Postgres) UpsertSocialPost(ctx context.Context, post model.SocialPost) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO social_posts (external_id, token_id, text, author, likes, reposts, replies, created_at, sentiment_label, sentiment_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (external_id) DO UPDATE
		SET likes = EXCLUDED.likes,
		    reposts = EXCLUDED.reposts,
		    replies = EXCLUDED.replies,
		    sentiment_label = COALESCE(EXCLUDED.sentiment_label, social_posts.sentiment_label),
		    sentiment_score = COALESCE(EXCLUDED.sentiment_score, social_posts.sentiment_score)`,
		post.ExternalID, post.TokenID, post.Text, post.Author,
		post.Likes, post.Reposts, post.Replies, post.CreatedAt,
		post.SentimentLabel, post.SentimentScore)
	if err != nil {
		return fmt.Errorf("upsert social post %s: %w", post.ExternalID, err)
	}
	return nil
}

func (p *Postgres) InsertSignal(ctx context.Context, sig *model.Signal) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.db.QueryRowxContext(ctx, `
		INSERT INTO signals (token_id, score, label, reasons, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		sig.TokenID, sig.Score, sig.Label, pq.Array(sig.Reasons), sig.CapturedAt).
		Scan(&sig.ID)
	if err != nil {
		return fmt.Errorf("insert signal %s: %w", sig.TokenID, err)
	}
	return nil
}

func (p *Postgres) TopSignals(ctx context.Context, since time.Time, limit int) ([]model.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.db.QueryxContext(ctx, `
		SELECT id, token_id, score, label, reasons, captured_at
		FROM signals
		WHERE captured_at >= $1
		ORDER BY score DESC, captured_at DESC
		LIMIT $2`,
		since, limit)
	if err != nil {
		return nil, fmt.Errorf("query top signals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var s model.Signal
		var reasons pq.StringArray
		if err := rows.Scan(&s.ID, &s.TokenID, &s.Score, &s.Label, &reasons, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		s.Reasons = []string(reasons)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) LatestMarketSnapshot(ctx context.Context, tokenID string) (*model.MarketSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var snap model.MarketSnapshot
	err := p.db.GetContext(ctx, &snap, `
		SELECT id, token_id, price, volume_1h, volume_24h, liquidity_usd, age_minutes, captured_at
		FROM market_snapshots
		WHERE token_id = $1
		ORDER BY captured_at DESC
		LIMIT 1`,
		tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest market snapshot %s: %w", tokenID, err)
	}
	return &snap, nil
}

func (p *Postgres) LatestSocialSnapshot(ctx context.Context, tokenID string) (*model.SocialSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var snap model.SocialSnapshot
	err := p.db.GetContext(ctx, &snap, `
		SELECT id, token_id, mentions_1h, mentions_24h, slope, sentiment_score, positive_ratio, negative_ratio, sentiment_analyzed, captured_at
		FROM social_snapshots
		WHERE token_id = $1
		ORDER BY captured_at DESC
		LIMIT 1`,
		tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest social snapshot %s: %w", tokenID, err)
	}
	return &snap, nil
}

func (p *Postgres) GetToken(ctx context.Context, tokenID string) (*model.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var token model.Token
	err := p.db.GetContext(ctx, &token, `
		SELECT id, chain, address, symbol, created_at
		FROM tokens
		WHERE id = $1`,
		tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token %s: %w", tokenID, err)
	}
	return &token, nil
}

// InsertProphecy inserts one prophecy. A unique violation on signal_hash
// means this exact prophecy was already minted; that is reported as
// created=false with no error.
func (p *Postgres) InsertProphecy(ctx context.Context, prophecy *model.Prophecy) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.db.QueryRowxContext(ctx, `
		INSERT INTO prophecies (token_id, signal_hash, score, rank, criteria_matched, narrative_score, social_themes, thesis_text, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		prophecy.TokenID, prophecy.SignalHash, prophecy.Score, prophecy.Rank,
		pq.Array(prophecy.CriteriaMatched), prophecy.NarrativeScore,
		pq.Array(prophecy.SocialThemes), prophecy.ThesisText, prophecy.PostedAt).
		Scan(&prophecy.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert prophecy %s: %w", prophecy.TokenID, err)
	}
	return true, nil
}

func (p *Postgres) RecentProphecies(ctx context.Context, since time.Time, limit int) ([]model.Prophecy, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.db.QueryxContext(ctx, `
		SELECT id, token_id, signal_hash, score, rank, criteria_matched, narrative_score, social_themes, thesis_text, posted_at
		FROM prophecies
		WHERE posted_at >= $1
		ORDER BY posted_at DESC
		LIMIT $2`,
		since, limit)
	if err != nil {
		return nil, fmt.Errorf("query prophecies: %w", err)
	}
	defer rows.Close()

	var out []model.Prophecy
	for rows.Next() {
		var p model.Prophecy
		var criteria, themes pq.StringArray
		if err := rows.Scan(&p.ID, &p.TokenID, &p.SignalHash, &p.Score, &p.Rank,
			&criteria, &p.NarrativeScore, &themes, &p.ThesisText, &p.PostedAt); err != nil {
			return nil, fmt.Errorf("scan prophecy: %w", err)
		}
		p.CriteriaMatched = []string(criteria)
		p.SocialThemes = []string(themes)
		out = append(out, p)
	}
	return out, rows.Err()
}
