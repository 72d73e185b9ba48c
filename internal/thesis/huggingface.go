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

// HuggingFace generates theses through the hosted text-generation inference
// API.
type HuggingFace struct {
	hosted
}

// NewHuggingFace creates the backend. APIKey must be set.
func NewHuggingFace(config HostedConfig, hc *httpclient.Client, reg *ratelimit.Registry) (*HuggingFace, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("huggingface: api key required")
	}
	config = config.withDefaults(
		"meta-llama/Meta-Llama-3.1-8B-Instruct",
		"https://api-inference.huggingface.co/models",
		1000,
	)
	return &HuggingFace{hosted: newHosted("huggingface", config, hc, reg)}, nil
}

func (h *HuggingFace) Name() string { return "huggingface" }

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
	Error         string `json:"error"`
}

// GenerateThesis prompts the model and parses the text after the final
// "Thesis:" marker.
func (h *HuggingFace) GenerateThesis(ctx context.Context, token TokenData, matched []string, signals narrative.Signals) (*Generation, error) {
	start := time.Now()
	prompt := h.buildPrompt(token, matched, signals)
	url := fmt.Sprintf("%s/%s", strings.TrimRight(h.config.BaseURL, "/"), h.config.Model)
	headers := map[string]string{"Authorization": "Bearer " + h.config.APIKey}

	var rows []hfGeneration
	err := h.call(ctx, func(ctx context.Context) error {
		return h.http.PostJSON(ctx, url, map[string]any{"inputs": prompt}, &rows, headers)
	})
	if err != nil {
		return nil, fmt.Errorf("huggingface generate: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("huggingface generate: empty response")
	}
	if rows[0].Error != "" {
		return nil, fmt.Errorf("huggingface generate: %s", rows[0].Error)
	}

	text := rows[0].GeneratedText
	if i := strings.LastIndex(text, "Thesis:"); i >= 0 {
		text = text[i+len("Thesis:"):]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("huggingface generate: blank thesis")
	}

	return &Generation{
		Thesis:         text,
		Confidence:     0.85,
		Provider:       h.Name(),
		ProcessingTime: time.Since(start),
	}, nil
}

func (h *HuggingFace) buildPrompt(token TokenData, matched []string, signals narrative.Signals) string {
	return fmt.Sprintf(`System: You are a crypto market analyst. Generate a concise, data-driven investment thesis for the following token based on the provided metrics.

User:
Token: %s
Price: $%g
Liquidity: $%g
24h Volume: $%g
Matched Criteria: %s
Narrative Themes: %s
Sentiment Score: %.2f

Thesis:`,
		token.DisplaySymbol(), token.Price, token.Liquidity, token.Volume24h,
		strings.Join(matched, ", "), strings.Join(signals.Themes, ", "), signals.Sentiment)
}
