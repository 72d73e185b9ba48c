package social

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/ratelimit"
)

// ErrNotConfigured is returned by the HTTP provider when no endpoint is set.
var ErrNotConfigured = errors.New("social: endpoint not configured")

// scheduleTimeout bounds how long a fetch may wait in the rate-limiter queue.
const scheduleTimeout = 30 * time.Second

// HTTPConfig configures the generic HTTP social backend.
type HTTPConfig struct {
	Endpoint  string  `yaml:"endpoint"`
	ReqPerMin float64 `yaml:"req_per_min"`
	Burst     int     `yaml:"burst"`
}

// DefaultHTTPConfig returns the HTTP backend defaults (endpoint unset).
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{ReqPerMin: 300, Burst: 10}
}

// HTTPProvider fetches mention counts from a generic JSON endpoint expected
// to answer {"mentions1h": n, "mentions24h": n, "slope": x}.
type HTTPProvider struct {
	config HTTPConfig
	http   *httpclient.Client
	bucket *ratelimit.Bucket
}

// NewHTTPProvider creates the generic HTTP backend.
func NewHTTPProvider(config HTTPConfig, hc *httpclient.Client, reg *ratelimit.Registry) *HTTPProvider {
	return &HTTPProvider{
		config: config,
		http:   hc,
		bucket: reg.Bucket("social", config.ReqPerMin, config.Burst),
	}
}

func (p *HTTPProvider) Name() string { return "http" }

type httpMentions struct {
	Mentions1h  int     `json:"mentions1h"`
	Mentions24h int     `json:"mentions24h"`
	Slope       float64 `json:"slope"`
}

// Fetch queries the endpoint for one token. Missing fields default to zero.
func (p *HTTPProvider) Fetch(ctx context.Context, tokenID string) (*Mentions, error) {
	if p.config.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	u := fmt.Sprintf("%s?tokenId=%s", p.config.Endpoint, url.QueryEscape(tokenID))

	var resp httpMentions
	err := p.bucket.Schedule(ctx, scheduleTimeout, func(ctx context.Context) error {
		return p.http.GetJSON(ctx, u, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("social fetch %s: %w", tokenID, err)
	}

	return &Mentions{
		TokenID:     tokenID,
		Mentions1h:  resp.Mentions1h,
		Mentions24h: resp.Mentions24h,
		Slope:       resp.Slope,
	}, nil
}
