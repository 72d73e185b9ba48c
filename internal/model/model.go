package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SignalLabel is the categorical assessment attached to a scored signal.
type SignalLabel string

const (
	LabelHypeBuilding SignalLabel = "HYPE_BUILDING" // high conviction, attention building
	LabelWhalePlay    SignalLabel = "WHALE_PLAY"    // notable but lower confidence
	LabelFakePump     SignalLabel = "FAKE_PUMP"     // likely false signal
	LabelDeadZone     SignalLabel = "DEAD_ZONE"     // inactive / no edge
)

// Token is an on-chain asset identified by chain+address. Tokens are created
// on first sighting by any connector and never deleted.
type Token struct {
	ID        string    `json:"id" db:"id"` // "<chain>:<address>"
	Chain     string    `json:"chain" db:"chain"`
	Address   string    `json:"address" db:"address"`
	Symbol    *string   `json:"symbol,omitempty" db:"symbol"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TokenID builds the composite token identifier from chain and address.
func TokenID(chain, address string) string {
	return chain + ":" + address
}

// SplitTokenID splits a composite token id back into chain and address.
// The address part may itself contain colons; only the first separator counts.
func SplitTokenID(id string) (chain, address string) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 {
		return id, ""
	}
	return parts[0], parts[1]
}

// MarketSnapshot is an immutable, append-only market observation for a token.
// "Latest" always means the row with the greatest CapturedAt.
type MarketSnapshot struct {
	ID           int64     `json:"id" db:"id"`
	TokenID      string    `json:"token_id" db:"token_id"`
	Price        float64   `json:"price" db:"price"`
	Volume1h     float64   `json:"volume_1h" db:"volume_1h"`
	Volume24h    float64   `json:"volume_24h" db:"volume_24h"`
	LiquidityUSD float64   `json:"liquidity_usd" db:"liquidity_usd"`
	AgeMinutes   float64   `json:"age_minutes" db:"age_minutes"`
	CapturedAt   time.Time `json:"captured_at" db:"captured_at"`
}

// SocialSnapshot is an immutable, append-only social observation for a token.
// Sentiment fields are nil when no raw items were analyzed for this capture.
type SocialSnapshot struct {
	ID                int64     `json:"id" db:"id"`
	TokenID           string    `json:"token_id" db:"token_id"`
	Mentions1h        int       `json:"mentions_1h" db:"mentions_1h"`
	Mentions24h       int       `json:"mentions_24h" db:"mentions_24h"`
	Slope             float64   `json:"slope" db:"slope"`
	SentimentScore    *float64  `json:"sentiment_score,omitempty" db:"sentiment_score"`
	PositiveRatio     *float64  `json:"positive_ratio,omitempty" db:"positive_ratio"`
	NegativeRatio     *float64  `json:"negative_ratio,omitempty" db:"negative_ratio"`
	SentimentAnalyzed *int      `json:"sentiment_analyzed,omitempty" db:"sentiment_analyzed"`
	CapturedAt        time.Time `json:"captured_at" db:"captured_at"`
}

// AnalyzedCount returns the number of sentiment-analyzed items, zero when the
// snapshot carries no sentiment data.
func (s *SocialSnapshot) AnalyzedCount() int {
	if s == nil || s.SentimentAnalyzed == nil {
		return 0
	}
	return *s.SentimentAnalyzed
}

// SocialPost is a raw social text item (tweet-like). Posts are upserted by
// ExternalID so redelivered jobs do not duplicate storage.
type SocialPost struct {
	ExternalID     string    `json:"external_id" db:"external_id"`
	TokenID        string    `json:"token_id" db:"token_id"`
	Text           string    `json:"text" db:"text"`
	Author         string    `json:"author" db:"author"`
	Likes          int       `json:"likes" db:"likes"`
	Reposts        int       `json:"reposts" db:"reposts"`
	Replies        int       `json:"replies" db:"replies"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	SentimentLabel *string   `json:"sentiment_label,omitempty" db:"sentiment_label"`
	SentimentScore *float64  `json:"sentiment_score,omitempty" db:"sentiment_score"`
}

// Signal is a scored, labeled assessment of a token at a point in time.
type Signal struct {
	ID         int64       `json:"id" db:"id"`
	TokenID    string      `json:"token_id" db:"token_id"`
	Score      float64     `json:"score" db:"score"`
	Label      SignalLabel `json:"label" db:"label"`
	Reasons    []string    `json:"reasons" db:"reasons"`
	CapturedAt time.Time   `json:"captured_at" db:"captured_at"`
}

// Prophecy is a ranked, explained output selected from recent signals.
// SignalHash is the idempotency key: one prophecy per {tokenID, score, rank}.
type Prophecy struct {
	ID              int64     `json:"id" db:"id"`
	TokenID         string    `json:"token_id" db:"token_id"`
	SignalHash      string    `json:"signal_hash" db:"signal_hash"`
	Score           float64   `json:"score" db:"score"`
	Rank            int       `json:"rank" db:"rank"`
	CriteriaMatched []string  `json:"criteria_matched" db:"criteria_matched"`
	NarrativeScore  float64   `json:"narrative_score" db:"narrative_score"`
	SocialThemes    []string  `json:"social_themes" db:"social_themes"`
	ThesisText      string    `json:"thesis_text" db:"thesis_text"`
	PostedAt        time.Time `json:"posted_at" db:"posted_at"`
}

// SignalHash computes the deterministic digest used as the prophecy
// idempotency key. The exact algorithm is not load-bearing, only its
// determinism: the same {tokenID, score, rank} tuple always hashes the same.
func SignalHash(tokenID string, score float64, rank int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%.2f|%d", tokenID, score, rank)))
	return hex.EncodeToString(sum[:])
}

// RiskFlags is the merged output of the independent per-token risk checks.
// Callers treat flags as additive scoring input, never as a hard gate.
type RiskFlags struct {
	IsHoneypot       bool     `json:"is_honeypot"`
	HoneypotReason   string   `json:"honeypot_reason,omitempty"`
	LiquidityLocked  bool     `json:"liquidity_locked"`
	LPLockPercentage *float64 `json:"lp_lock_percentage,omitempty"`
	ContractVerified bool     `json:"contract_verified"`
}

// Flags renders the set flags as the strings consumed by the scoring engine.
func (r RiskFlags) Flags() []string {
	var flags []string
	if r.IsHoneypot {
		flags = append(flags, "honeypot")
	}
	if !r.LiquidityLocked {
		flags = append(flags, "liquidity-unlocked")
	}
	if !r.ContractVerified {
		flags = append(flags, "contract-unverified")
	}
	return flags
}
