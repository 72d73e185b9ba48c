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

// OpenAI generates theses through the chat-completions API.
type OpenAI struct {
	hosted
}

// NewOpenAI creates the backend. APIKey must be set.
func NewOpenAI(config HostedConfig, hc *httpclient.Client, reg *ratelimit.Registry) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai: api key required")
	}
	config = config.withDefaults("gpt-3.5-turbo", "https://api.openai.com/v1/chat/completions", 3000)
	return &OpenAI{hosted: newHosted("openai", config, hc, reg)}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) GenerateThesis(ctx context.Context, token TokenData, matched []string, signals narrative.Signals) (*Generation, error) {
	start := time.Now()
	req := chatRequest{
		Model:    o.config.Model,
		Messages: []chatMessage{{Role: "user", Content: o.buildPrompt(token, matched, signals)}},
	}
	headers := map[string]string{"Authorization": "Bearer " + o.config.APIKey}

	var resp chatResponse
	err := o.call(ctx, func(ctx context.Context) error {
		return o.http.PostJSON(ctx, o.config.BaseURL, req, &resp, headers)
	})
	if err != nil {
		return nil, fmt.Errorf("openai generate: %w", err)
	}

	text, ok := resp.content()
	if !ok || strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("openai generate: empty response")
	}

	return &Generation{
		Thesis:         strings.TrimSpace(text),
		Confidence:     0.85,
		Provider:       o.Name(),
		ProcessingTime: time.Since(start),
	}, nil
}

func (o *OpenAI) buildPrompt(token TokenData, matched []string, signals narrative.Signals) string {
	return fmt.Sprintf(`As an expert crypto analyst, generate a sharp investment thesis for %s.
Key data:
- Price: $%g
- Liquidity: $%g
- 24h Volume: $%g
- Matched investment triggers: %s
- Social narrative themes: %s
- Sentiment score: %.2f

Synthesize this into a compelling, professional-grade thesis.`,
		token.DisplaySymbol(), token.Price, token.Liquidity, token.Volume24h,
		strings.Join(matched, ", "), strings.Join(signals.Themes, ", "), signals.Sentiment)
}
