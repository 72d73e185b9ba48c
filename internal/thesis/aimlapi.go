package thesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/narrative"
	"github.com/tokensage/tokensage/internal/ratelimit"
)

// AimlAPI generates theses through the aimlapi.com chat-completions API.
type AimlAPI struct {
	hosted
}

// NewAimlAPI creates the backend. APIKey must be set.
func NewAimlAPI(config HostedConfig, hc *httpclient.Client, reg *ratelimit.Registry) (*AimlAPI, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("aimlapi: api key required")
	}
	config = config.withDefaults(
		"aiml/meta-llama/Meta-Llama-3.1-405B-Instruct-Turbo",
		"https://api.aimlapi.com/v2/chat/completions",
		500,
	)
	return &AimlAPI{hosted: newHosted("aimlapi", config, hc, reg)}, nil
}

func (a *AimlAPI) Name() string { return "aimlapi" }

func (a *AimlAPI) GenerateThesis(ctx context.Context, token TokenData, matched []string, signals narrative.Signals) (*Generation, error) {
	start := time.Now()
	req := chatRequest{
		Model:    a.config.Model,
		Messages: []chatMessage{{Role: "user", Content: a.buildPrompt(token, matched, signals)}},
	}
	headers := map[string]string{"Authorization": "Bearer " + a.config.APIKey}

	var resp chatResponse
	err := a.call(ctx, func(ctx context.Context) error {
		return a.http.PostJSON(ctx, a.config.BaseURL, req, &resp, headers)
	})
	if err != nil {
		return nil, fmt.Errorf("aimlapi generate: %w", err)
	}

	text, ok := resp.content()
	if !ok || strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("aimlapi generate: empty response")
	}

	return &Generation{
		Thesis:         strings.TrimSpace(text),
		Confidence:     0.85,
		Provider:       a.Name(),
		ProcessingTime: time.Since(start),
	}, nil
}

func (a *AimlAPI) buildPrompt(token TokenData, matched []string, signals narrative.Signals) string {
	return fmt.Sprintf(`Generate a detailed investment thesis for the crypto token %s.
Analyze the following data points and synthesize them into a coherent narrative.
- Token Symbol: %s
- Current Price: $%g
- Liquidity: $%g
- 24-hour Volume: $%g
- Key Investment Criteria Met: %s
- Dominant Narrative Themes: %s
- Social Sentiment Score: %.2f

The thesis should be well-structured, insightful, and highlight both potential upsides and risks.`,
		token.DisplaySymbol(), token.DisplaySymbol(), token.Price, token.Liquidity, token.Volume24h,
		strings.Join(matched, ", "), strings.Join(signals.Themes, ", "), signals.Sentiment)
}
