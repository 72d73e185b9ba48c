package social

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/model"
	"github.com/tokensage/tokensage/internal/ratelimit"
)

// ScraperConfig configures the scraped text-search backend.
type ScraperConfig struct {
	BaseURL    string  `yaml:"base_url"`
	MaxResults int     `yaml:"max_results"`
	ReqPerMin  float64 `yaml:"req_per_min"`
	Burst      int     `yaml:"burst"`
}

// DefaultScraperConfig returns the scraper defaults.
func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{MaxResults: 100, ReqPerMin: 150, Burst: 10}
}

// ScraperProvider searches a post feed by token symbol, counts mentions in
// trailing windows and keeps the raw posts for downstream sentiment analysis.
type ScraperProvider struct {
	config ScraperConfig
	http   *httpclient.Client
	bucket *ratelimit.Bucket
	now    func() time.Time
}

// NewScraperProvider creates the scraped backend.
func NewScraperProvider(config ScraperConfig, hc *httpclient.Client, reg *ratelimit.Registry) *ScraperProvider {
	return &ScraperProvider{
		config: config,
		http:   hc,
		bucket: reg.Bucket("scraper", config.ReqPerMin, config.Burst),
		now:    time.Now,
	}
}

func (p *ScraperProvider) Name() string { return "scraper" }

// wirePost tolerates the field aliases the upstream feed is known to emit.
type wirePost struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Likes     int       `json:"likes"`
	Reposts   int       `json:"reposts"`
	Replies   int       `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

type searchPostsResponse struct {
	Posts []wirePost `json:"posts"`
}

// Fetch searches using the address part of the token id. Symbol search via
// FetchBySymbol gives better recall when the symbol is known.
func (p *ScraperProvider) Fetch(ctx context.Context, tokenID string) (*Mentions, error) {
	_, address := model.SplitTokenID(tokenID)
	if address == "" {
		address = tokenID
	}
	return p.search(ctx, tokenID, address)
}

// FetchBySymbol searches the feed by display symbol.
func (p *ScraperProvider) FetchBySymbol(ctx context.Context, tokenID, symbol string) (*Mentions, error) {
	if symbol == "" {
		return p.Fetch(ctx, tokenID)
	}
	return p.search(ctx, tokenID, symbol)
}

func (p *ScraperProvider) search(ctx context.Context, tokenID, query string) (*Mentions, error) {
	if p.config.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	u := fmt.Sprintf("%s?q=%s&limit=%d", p.config.BaseURL, url.QueryEscape(query), p.config.MaxResults)

	var resp searchPostsResponse
	err := p.bucket.Schedule(ctx, scheduleTimeout, func(ctx context.Context) error {
		return p.http.GetJSON(ctx, u, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("scraper search %q: %w", query, err)
	}

	now := p.now()
	mentions1h, mentions24h := 0, 0
	posts := make([]model.SocialPost, 0, len(resp.Posts))
	for _, wp := range resp.Posts {
		if wp.ID == "" || wp.Text == "" {
			continue
		}
		age := now.Sub(wp.CreatedAt)
		if age < 0 || age > 24*time.Hour {
			continue
		}
		mentions24h++
		if age <= time.Hour {
			mentions1h++
		}
		author := wp.Author
		if author == "" {
			author = "unknown"
		}
		posts = append(posts, model.SocialPost{
			ExternalID: wp.ID,
			TokenID:    tokenID,
			Text:       wp.Text,
			Author:     author,
			Likes:      wp.Likes,
			Reposts:    wp.Reposts,
			Replies:    wp.Replies,
			CreatedAt:  wp.CreatedAt,
		})
	}

	log.Debug().
		Str("token", tokenID).
		Str("query", query).
		Int("posts", len(posts)).
		Int("mentions_24h", mentions24h).
		Msg("Scraper social fetch")

	return &Mentions{
		TokenID:     tokenID,
		Mentions1h:  mentions1h,
		Mentions24h: mentions24h,
		Slope:       slopeFromCounts(mentions1h, mentions24h),
		Posts:       posts,
	}, nil
}
