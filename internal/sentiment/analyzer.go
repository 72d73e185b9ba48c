// Package sentiment scores short social texts against a hosted inference
// model and aggregates the per-text results for a token.
package sentiment

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/ratelimit"
)

// Sentiment labels. Neutral results carry LabelNegative with zero confidence
// and are excluded from aggregation.
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
)

// minTextLen is the minimum number of runes a text must have, after
// trimming, to be worth an inference call.
const minTextLen = 10

// Result is the sentiment of one text. Score is signed: positive labels map
// to +confidence, negative labels to -confidence.
type Result struct {
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// Aggregated summarizes a slice of results, ignoring zero-confidence items.
type Aggregated struct {
	AverageScore  float64 `json:"average_score"`
	PositiveRatio float64 `json:"positive_ratio"`
	NegativeRatio float64 `json:"negative_ratio"`
	TotalAnalyzed int     `json:"total_analyzed"`
}

// Config controls the hosted inference backend.
type Config struct {
	APIKey    string  `yaml:"api_key"`
	Model     string  `yaml:"model"`
	BaseURL   string  `yaml:"base_url"`
	BatchSize int     `yaml:"batch_size"`
	ReqPerMin float64 `yaml:"req_per_min"`
	Burst     int     `yaml:"burst"`
}

// DefaultConfig returns the inference defaults.
func DefaultConfig() Config {
	return Config{
		Model:     "distilbert-base-uncased-finetuned-sst-2-english",
		BaseURL:   "https://api-inference.huggingface.co/models",
		BatchSize: 32,
		ReqPerMin: 1000,
		Burst:     10,
	}
}

// Analyzer batches texts to the inference API. A failed batch degrades to
// neutral zero-confidence results rather than failing the whole call.
type Analyzer struct {
	config Config
	http   *httpclient.Client
	bucket *ratelimit.Bucket
}

// New creates an Analyzer. The client's own retry policy covers transient
// 429/5xx/network failures.
func New(config Config, hc *httpclient.Client, reg *ratelimit.Registry) *Analyzer {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Analyzer{
		config: config,
		http:   hc,
		bucket: reg.Bucket("sentiment", config.ReqPerMin, config.Burst),
	}
}

// Enabled reports whether an API key is configured.
func (a *Analyzer) Enabled() bool { return a.config.APIKey != "" }

const scheduleTimeout = 30 * time.Second

// wireScore is one candidate label from the inference response. The API
// returns a nested array per input, one entry per class.
type wireScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Analyze scores a single text.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Result, error) {
	results, err := a.AnalyzeBatch(ctx, []string{text})
	if err != nil {
		return Result{Label: LabelNegative}, err
	}
	return results[0], nil
}

// AnalyzeBatch scores texts, preserving input order. Texts shorter than the
// minimum length come back neutral without an API call. Batches that fail
// after retries come back neutral as well.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string) ([]Result, error) {
	if !a.Enabled() {
		return nil, fmt.Errorf("sentiment: api key not configured")
	}

	results := make([]Result, len(texts))
	for i := range results {
		results[i] = Result{Label: LabelNegative}
	}

	var idxs []int
	var inputs []string
	for i, t := range texts {
		trimmed := strings.TrimSpace(t)
		if utf8.RuneCountInString(trimmed) < minTextLen {
			continue
		}
		idxs = append(idxs, i)
		inputs = append(inputs, trimmed)
	}

	for start := 0; start < len(inputs); start += a.config.BatchSize {
		end := start + a.config.BatchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		batch := inputs[start:end]

		rows, err := a.infer(ctx, batch)
		if err != nil {
			log.Warn().Err(err).Int("batch", len(batch)).Msg("Sentiment batch failed, degrading to neutral")
			continue
		}
		for j, row := range rows {
			if j >= len(batch) {
				break
			}
			results[idxs[start+j]] = pickTop(row)
		}
	}
	return results, nil
}

func (a *Analyzer) infer(ctx context.Context, inputs []string) ([][]wireScore, error) {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(a.config.BaseURL, "/"), a.config.Model)
	headers := map[string]string{"Authorization": "Bearer " + a.config.APIKey}

	var rows [][]wireScore
	err := a.bucket.Schedule(ctx, scheduleTimeout, func(ctx context.Context) error {
		return a.http.PostJSON(ctx, url, map[string]any{"inputs": inputs}, &rows, headers)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// pickTop keeps the highest-confidence class for one input.
func pickTop(row []wireScore) Result {
	var top wireScore
	for _, s := range row {
		if s.Score > top.Score {
			top = s
		}
	}
	label := LabelNegative
	if strings.Contains(strings.ToUpper(top.Label), "POS") {
		label = LabelPositive
	}
	score := top.Score
	if label == LabelNegative {
		score = -score
	}
	return Result{Label: label, Score: score, Confidence: top.Score}
}

// Aggregate summarizes results, excluding zero-confidence items. All-neutral
// input yields the zero value.
func Aggregate(results []Result) Aggregated {
	var analyzed, positives, negatives int
	var sum float64
	for _, r := range results {
		if r.Confidence <= 0 {
			continue
		}
		analyzed++
		sum += r.Score
		if r.Score > 0 {
			positives++
		} else if r.Score < 0 {
			negatives++
		}
	}
	if analyzed == 0 {
		return Aggregated{}
	}
	return Aggregated{
		AverageScore:  sum / float64(analyzed),
		PositiveRatio: float64(positives) / float64(analyzed),
		NegativeRatio: float64(negatives) / float64(analyzed),
		TotalAnalyzed: analyzed,
	}
}
