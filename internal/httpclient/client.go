package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Config controls retry, backoff and concurrency behavior for a Client.
type Config struct {
	MaxConcurrency int           `yaml:"max_concurrency"` // in-flight request cap, 0 = unlimited
	RequestTimeout time.Duration `yaml:"request_timeout"` // hard per-request timeout
	MaxRetries     int           `yaml:"max_retries"`     // retry attempts after the first request
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	UserAgent      string        `yaml:"user_agent"`
}

// DefaultConfig returns conservative settings suitable for free-tier APIs.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     3,
		BackoffBase:    time.Second,
		BackoffMax:     30 * time.Second,
	}
}

// StatusError is returned when retries are exhausted on a non-2xx response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

// Client is a shared HTTP helper for the outbound connectors: bounded
// concurrency, per-request timeout, bounded exponential-backoff retry on
// 5xx/timeout/network errors, and 429 handling that honors a Retry-After
// hint when present.
type Client struct {
	config    Config
	semaphore chan struct{}
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
}

// New creates a Client from config.
func New(config Config) *Client {
	var sem chan struct{}
	if config.MaxConcurrency > 0 {
		sem = make(chan struct{}, config.MaxConcurrency)
	}
	return &Client{
		config:    config,
		semaphore: sem,
		client:    &http.Client{Timeout: config.RequestTimeout},
	}
}

// WithBreaker wraps the client in a circuit breaker. The breaker trips after
// 3 consecutive failures, or a >5% failure rate once 20 requests are seen.
func (c *Client) WithBreaker(name string) *Client {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	c.breaker = gobreaker.NewCircuitBreaker(st)
	return c
}

// Do executes the request with the configured retry policy. The response body
// is the caller's to close on success.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.breaker != nil {
		out, err := c.breaker.Execute(func() (any, error) {
			return c.do(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		return out.(*http.Response), nil
	}
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.semaphore != nil {
		select {
		case c.semaphore <- struct{}{}:
			defer func() { <-c.semaphore }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			log.Debug().
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("url", req.URL.String()).
				Msg("Retrying HTTP request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := c.client.Do(attemptReq)
		if err != nil {
			lastErr = err
			if isRetryableError(err) {
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.config.MaxRetries {
			// Honor the server's hint ahead of our own backoff schedule.
			delay, ok := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, Status: resp.Status}
			if ok {
				log.Debug().Dur("retry_after", delay).Str("url", req.URL.String()).Msg("Rate limited, honoring Retry-After")
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			continue
		}

		if isRetryableStatus(resp.StatusCode) && attempt < c.config.MaxRetries {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, Status: resp.Status}
			continue
		}

		if resp.StatusCode >= 400 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
		}

		return resp, nil
	}

	return nil, lastErr
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// PostJSON issues a POST with a JSON body and decodes the JSON response into
// out. Extra headers (auth tokens) are applied before sending.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any, headers map[string]string) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s: %w", url, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	backoff := c.config.BackoffBase * time.Duration(1<<uint(attempt-1))
	if backoff > c.config.BackoffMax {
		backoff = c.config.BackoffMax
	}
	// Up to 10% jitter so synchronized workers do not retry in lockstep
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return backoff + jitter
}

// retryAfter parses a Retry-After header, given either as delay seconds or
// as an HTTP date.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Connection-level failures surface as *url.Error wrapping syscall errors;
	// treat anything that is not a context cancellation as transient.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return statusCode >= 500
}
