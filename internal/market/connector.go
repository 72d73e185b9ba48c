package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/cache"
	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/model"
	"github.com/tokensage/tokensage/internal/ratelimit"
)

// Snapshot is a normalized market observation for one token pair.
type Snapshot struct {
	Chain        string  `json:"chain"`
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol,omitempty"`
	Price        float64 `json:"price"`
	Volume1h     float64 `json:"volume_1h"`
	Volume24h    float64 `json:"volume_24h"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	AgeMinutes   float64 `json:"age_minutes"`
	TxCount      int     `json:"tx_count"`
	Holders      int     `json:"holders"`
}

// TokenID returns the composite chain:address identifier for the snapshot.
func (s Snapshot) TokenID() string { return model.TokenID(s.Chain, s.Address) }

// scheduleTimeout bounds how long a fetch may wait in the rate-limiter queue.
const scheduleTimeout = 30 * time.Second

// Candidate is a trending-discovery result: a snapshot plus its composite
// trending score.
type Candidate struct {
	Snapshot
	TrendingScore float64 `json:"trending_score"`
}

// Config holds the market connector's endpoints and discovery tunables.
type Config struct {
	BaseURL        string        `yaml:"base_url"`        // pair search API root
	ProfilesURL    string        `yaml:"profiles_url"`    // token-profile discovery feed
	SearchTerms    []string      `yaml:"search_terms"`    // multi-term discovery queries
	MaxPerQuery    int           `yaml:"max_per_query"`   // rows kept per search response
	LiquidityFloor float64       `yaml:"liquidity_floor"` // USD, trending filter
	PumpMaxAgeMin  float64       `yaml:"pump_max_age_min"`
	PumpVolume1h   float64       `yaml:"pump_volume_1h"` // 1h volume above this on a very new pair is treated as a pump
	MaxPerChain    int           `yaml:"max_per_chain"`
	MaxTotal       int           `yaml:"max_total"`
	ReqPerMin      float64       `yaml:"req_per_min"`
	Burst          int           `yaml:"burst"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns the connector defaults for the public aggregator.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.dexscreener.com/latest/dex",
		ProfilesURL:    "https://api.dexscreener.com/token-profiles/latest/v1",
		SearchTerms:    []string{"sol", "base", "eth"},
		MaxPerQuery:    10,
		LiquidityFloor: 5000,
		PumpMaxAgeMin:  60,
		PumpVolume1h:   250000,
		MaxPerChain:    5,
		MaxTotal:       15,
		ReqPerMin:      300,
		Burst:          10,
		CacheTTL:       60 * time.Second,
	}
}

// Connector fetches token pair snapshots from the market-data aggregator,
// either by explicit query or by trending discovery.
type Connector struct {
	config Config
	http   *httpclient.Client
	bucket *ratelimit.Bucket
	cache  cache.Cache
	scorer *TrendingScorer
	now    func() time.Time
}

// NewConnector creates a market connector sharing the process-wide rate
// limiter registry and cache.
func NewConnector(config Config, hc *httpclient.Client, reg *ratelimit.Registry, c cache.Cache) *Connector {
	if c == nil {
		c = cache.NewMemory()
	}
	return &Connector{
		config: config,
		http:   hc,
		bucket: reg.Bucket("market", config.ReqPerMin, config.Burst),
		cache:  c,
		scorer: NewTrendingScorer(nil),
		now:    time.Now,
	}
}

// SearchPairs fetches pairs matching an explicit search term and normalizes
// them. Rows missing a usable chain+address are dropped, not propagated.
func (c *Connector) SearchPairs(ctx context.Context, query string) ([]Snapshot, error) {
	u := fmt.Sprintf("%s/search?q=%s", c.config.BaseURL, url.QueryEscape(query))

	var resp searchResponse
	err := c.bucket.Schedule(ctx, scheduleTimeout, func(ctx context.Context) error {
		return c.http.GetJSON(ctx, u, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("market search %q: %w", query, err)
	}

	now := c.now()
	snaps := make([]Snapshot, 0, len(resp.Pairs))
	dropped := 0
	for _, p := range resp.Pairs {
		if c.config.MaxPerQuery > 0 && len(snaps) >= c.config.MaxPerQuery {
			break
		}
		snap, ok := normalize(p, now)
		if !ok {
			dropped++
			continue
		}
		snaps = append(snaps, snap)
	}
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Str("query", query).Msg("Dropped unusable market rows")
	}
	return snaps, nil
}

// Trending discovers a candidate universe without a search term. Candidates
// from the profile feed and the multi-term searches are merged by
// chain:address (max volume/liquidity per duplicate), scored, filtered and
// capped per chain and in total.
func (c *Connector) Trending(ctx context.Context) ([]Candidate, error) {
	if b, ok := c.cache.Get(ctx, "market:trending"); ok {
		var cached []Candidate
		if err := json.Unmarshal(b, &cached); err == nil {
			return cached, nil
		}
	}

	merged := make(map[string]Snapshot)

	// Strategy 1: token-profile feed, resolved to pairs per address.
	if err := c.mergeProfileFeed(ctx, merged); err != nil {
		log.Warn().Err(err).Msg("Profile feed discovery unavailable, continuing with search terms")
	}

	// Strategy 2: multi-term search.
	for _, term := range c.config.SearchTerms {
		snaps, err := c.SearchPairs(ctx, term)
		if err != nil {
			log.Warn().Err(err).Str("term", term).Msg("Trending search term failed, skipping")
			continue
		}
		for _, s := range snaps {
			mergeMax(merged, s)
		}
	}

	candidates := c.rank(merged)

	if b, err := json.Marshal(candidates); err == nil {
		c.cache.Set(ctx, "market:trending", b, c.config.CacheTTL)
	}
	return candidates, nil
}

func (c *Connector) mergeProfileFeed(ctx context.Context, merged map[string]Snapshot) error {
	if c.config.ProfilesURL == "" {
		return nil
	}

	var profiles []wireProfile
	err := c.bucket.Schedule(ctx, scheduleTimeout, func(ctx context.Context) error {
		return c.http.GetJSON(ctx, c.config.ProfilesURL, &profiles)
	})
	if err != nil {
		return err
	}

	for i, p := range profiles {
		if i >= c.config.MaxPerQuery {
			break
		}
		if p.TokenAddress == "" {
			continue
		}
		snaps, err := c.SearchPairs(ctx, p.TokenAddress)
		if err != nil {
			log.Debug().Err(err).Str("address", p.TokenAddress).Msg("Profile pair lookup failed, skipping")
			continue
		}
		for _, s := range snaps {
			mergeMax(merged, s)
		}
	}
	return nil
}

// mergeMax merges a snapshot into the candidate set keyed by chain:address,
// keeping the maximum observed volume and liquidity across duplicates.
func mergeMax(merged map[string]Snapshot, s Snapshot) {
	key := s.TokenID()
	prev, ok := merged[key]
	if !ok {
		merged[key] = s
		return
	}
	if s.Volume1h > prev.Volume1h {
		prev.Volume1h = s.Volume1h
	}
	if s.Volume24h > prev.Volume24h {
		prev.Volume24h = s.Volume24h
	}
	if s.LiquidityUSD > prev.LiquidityUSD {
		prev.LiquidityUSD = s.LiquidityUSD
	}
	if prev.Symbol == "" {
		prev.Symbol = s.Symbol
	}
	merged[key] = prev
}

// rank scores, filters and caps the merged candidate set.
func (c *Connector) rank(merged map[string]Snapshot) []Candidate {
	candidates := make([]Candidate, 0, len(merged))
	for _, s := range merged {
		if s.LiquidityUSD < c.config.LiquidityFloor {
			continue
		}
		// Pump heuristic: very new pair with suspiciously high hourly volume.
		if s.AgeMinutes > 0 && s.AgeMinutes < c.config.PumpMaxAgeMin && s.Volume1h > c.config.PumpVolume1h {
			log.Debug().Str("token", s.TokenID()).Float64("volume_1h", s.Volume1h).Msg("Pump heuristic dropped candidate")
			continue
		}
		candidates = append(candidates, Candidate{
			Snapshot:      s,
			TrendingScore: c.scorer.Score(s, Timeframe24h),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].TrendingScore > candidates[j].TrendingScore
	})

	// Per-chain diversity cap, then total cap.
	perChain := make(map[string]int)
	out := candidates[:0]
	for _, cand := range candidates {
		if c.config.MaxTotal > 0 && len(out) >= c.config.MaxTotal {
			break
		}
		if c.config.MaxPerChain > 0 && perChain[cand.Chain] >= c.config.MaxPerChain {
			continue
		}
		perChain[cand.Chain]++
		out = append(out, cand)
	}
	return out
}
