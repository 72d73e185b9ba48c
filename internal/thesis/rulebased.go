package thesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tokensage/tokensage/internal/narrative"
)

// fallbackThesis is used when no template line fires.
const fallbackThesis = "A token of interest with notable on-chain activity."

// RuleBased writes a thesis from fixed template lines conditioned on the
// matched criteria and narrative signals. It never fails, which makes it the
// fallback for every hosted backend.
type RuleBased struct{}

// NewRuleBased creates the template backend.
func NewRuleBased() *RuleBased { return &RuleBased{} }

func (r *RuleBased) Name() string { return "rule-based" }

// GenerateThesis builds the template thesis and a confidence derived from
// how much evidence backed it.
func (r *RuleBased) GenerateThesis(_ context.Context, token TokenData, matched []string, signals narrative.Signals) (*Generation, error) {
	start := time.Now()

	var b strings.Builder
	header := fmt.Sprintf("Thesis for %s:\n", token.DisplaySymbol())
	b.WriteString(header)

	if contains(matched, "early-momentum") {
		fmt.Fprintf(&b, "- Strong early momentum detected with significant 24h volume of $%.2f.\n", token.Volume24h)
	}
	if contains(matched, "social-breakout") {
		b.WriteString("- Social chatter is rapidly increasing, indicating a breakout in community interest.\n")
	}
	if signals.Sentiment > 0.5 {
		b.WriteString("- Overall sentiment is highly positive.\n")
	}
	if len(signals.Themes) > 0 {
		fmt.Fprintf(&b, "- Key narrative themes: %s.\n", strings.Join(signals.Themes, ", "))
	}

	text := b.String()
	if text == header {
		text = fallbackThesis
	}

	return &Generation{
		Thesis:         text,
		Confidence:     confidence(matched, signals),
		Provider:       r.Name(),
		ProcessingTime: time.Since(start),
	}, nil
}

func confidence(matched []string, signals narrative.Signals) float64 {
	score := 0.0
	if len(matched) > 0 {
		score += 0.3
	}
	if signals.Sentiment > 0.5 {
		score += 0.3
	}
	if len(signals.Themes) > 0 {
		score += 0.2
	}
	if signals.Coherence > 0.7 {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
