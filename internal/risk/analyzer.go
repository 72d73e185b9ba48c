package risk

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/model"
)

// Config holds the risk-intelligence endpoints. Empty URLs disable the
// corresponding check; it then reports its conservative default.
type Config struct {
	HoneypotURL  string `yaml:"honeypot_url"`
	LiquidityURL string `yaml:"liquidity_url"`
	ContractURL  string `yaml:"contract_url"`
}

// DefaultConfig returns the public honeypot checker and no optional sources.
func DefaultConfig() Config {
	return Config{
		HoneypotURL: "https://api.honeypot.is/v2/IsHoneypot",
	}
}

// Analyzer runs the independent per-token risk checks. Each check degrades to
// an unflagged default on failure rather than aborting the others; callers
// feed the merged flags into scoring, never use them as a hard gate.
type Analyzer struct {
	config Config
	http   *httpclient.Client
}

// NewAnalyzer creates a risk analyzer on the shared HTTP helper.
func NewAnalyzer(config Config, hc *httpclient.Client) *Analyzer {
	return &Analyzer{config: config, http: hc}
}

// Analyze runs the honeypot, liquidity-lock and contract-verification checks
// concurrently for one {address, chain} and merges their results.
func (a *Analyzer) Analyze(ctx context.Context, address, chain string) model.RiskFlags {
	var (
		wg    sync.WaitGroup
		flags = model.RiskFlags{
			LiquidityLocked:  true,
			ContractVerified: true,
		}
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		honeypot, reason := a.checkHoneypot(ctx, address, chain)
		flags.IsHoneypot = honeypot
		flags.HoneypotReason = reason
	}()
	go func() {
		defer wg.Done()
		locked, pct := a.checkLiquidityLock(ctx, address, chain)
		flags.LiquidityLocked = locked
		flags.LPLockPercentage = pct
	}()
	go func() {
		defer wg.Done()
		flags.ContractVerified = a.checkContract(ctx, address, chain)
	}()
	wg.Wait()

	return flags
}

type honeypotResponse struct {
	IsHoneypot bool   `json:"isHoneypot"`
	Reason     string `json:"honeypotReason"`
}

func (a *Analyzer) checkHoneypot(ctx context.Context, address, chain string) (bool, string) {
	if a.config.HoneypotURL == "" {
		return false, ""
	}
	u := fmt.Sprintf("%s?address=%s&chainID=%s", a.config.HoneypotURL, url.QueryEscape(address), url.QueryEscape(chain))
	var resp honeypotResponse
	if err := a.http.GetJSON(ctx, u, &resp); err != nil {
		log.Debug().Err(err).Str("address", address).Msg("Honeypot check failed, defaulting to not flagged")
		return false, ""
	}
	return resp.IsHoneypot, resp.Reason
}

type liquidityResponse struct {
	Locked         bool     `json:"locked"`
	LockPercentage *float64 `json:"lockPercentage"`
}

func (a *Analyzer) checkLiquidityLock(ctx context.Context, address, chain string) (bool, *float64) {
	if a.config.LiquidityURL == "" {
		return true, nil
	}
	u := fmt.Sprintf("%s?address=%s&chainID=%s", a.config.LiquidityURL, url.QueryEscape(address), url.QueryEscape(chain))
	var resp liquidityResponse
	if err := a.http.GetJSON(ctx, u, &resp); err != nil {
		log.Debug().Err(err).Str("address", address).Msg("Liquidity lock check failed, defaulting to locked")
		return true, nil
	}
	return resp.Locked, resp.LockPercentage
}

type contractResponse struct {
	Verified bool `json:"verified"`
}

func (a *Analyzer) checkContract(ctx context.Context, address, chain string) bool {
	if a.config.ContractURL == "" {
		return true
	}
	u := fmt.Sprintf("%s?address=%s&chainID=%s", a.config.ContractURL, url.QueryEscape(address), url.QueryEscape(chain))
	var resp contractResponse
	if err := a.http.GetJSON(ctx, u, &resp); err != nil {
		log.Debug().Err(err).Str("address", address).Msg("Contract verification check failed, defaulting to verified")
		return true
	}
	return resp.Verified
}
