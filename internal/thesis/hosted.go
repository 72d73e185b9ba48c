package thesis

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/ratelimit"
)

// HostedConfig configures one hosted LLM backend. A backend is only
// registered when APIKey is set.
type HostedConfig struct {
	APIKey     string  `yaml:"api_key"`
	Model      string  `yaml:"model"`
	BaseURL    string  `yaml:"base_url"`
	MaxRetries int     `yaml:"max_retries"`
	ReqPerMin  float64 `yaml:"req_per_min"`
	Burst      int     `yaml:"burst"`
}

func (c HostedConfig) withDefaults(model, baseURL string, reqPerMin float64) HostedConfig {
	if c.Model == "" {
		c.Model = model
	}
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.ReqPerMin <= 0 {
		c.ReqPerMin = reqPerMin
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	return c
}

// hosted carries the plumbing every hosted backend shares: a rate-limit
// bucket and a linear-backoff retry loop. Retry lives here, so the HTTP
// client must be built without its own retries.
type hosted struct {
	config HostedConfig
	http   *httpclient.Client
	bucket *ratelimit.Bucket
	name   string
}

const hostedScheduleTimeout = 60 * time.Second

func newHosted(name string, config HostedConfig, hc *httpclient.Client, reg *ratelimit.Registry) hosted {
	return hosted{
		config: config,
		http:   hc,
		bucket: reg.Bucket("thesis:"+name, config.ReqPerMin, config.Burst),
		name:   name,
	}
}

// call runs fn under the rate limiter, retrying failures with linear backoff
// (1s, 2s, 3s, ...) up to MaxRetries extra attempts.
func (h *hosted) call(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			log.Debug().
				Str("provider", h.name).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying thesis generation")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := h.bucket.Schedule(ctx, hostedScheduleTimeout, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

// newHostedClient builds the HTTP client hosted backends use. Retries are
// disabled because the backend runs its own linear-backoff loop.
func newHostedClient() *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.RequestTimeout = 30 * time.Second
	return httpclient.New(cfg)
}

// chat-completions request/response shapes shared by the OpenAI-compatible
// backends.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r chatResponse) content() (string, bool) {
	if len(r.Choices) == 0 {
		return "", false
	}
	return r.Choices[0].Message.Content, true
}
