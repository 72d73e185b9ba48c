// Package config loads the application configuration: defaults, then an
// optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tokensage/tokensage/internal/httpclient"
	"github.com/tokensage/tokensage/internal/market"
	"github.com/tokensage/tokensage/internal/prophecy"
	"github.com/tokensage/tokensage/internal/risk"
	"github.com/tokensage/tokensage/internal/scoring"
	"github.com/tokensage/tokensage/internal/sentiment"
	"github.com/tokensage/tokensage/internal/social"
	"github.com/tokensage/tokensage/internal/store"
	"github.com/tokensage/tokensage/internal/thesis"
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WorkerConfig controls the queue worker loops.
type WorkerConfig struct {
	JobTimeout     time.Duration `yaml:"job_timeout"`
	MinScorePubSub float64       `yaml:"min_score_pubsub"`
	SocialProvider string        `yaml:"social_provider"` // mock | http | scraper
}

// Config is the root configuration.
type Config struct {
	Redis     RedisConfig           `yaml:"redis"`
	Postgres  store.PostgresConfig  `yaml:"postgres"`
	HTTP      httpclient.Config     `yaml:"http"`
	Market    market.Config         `yaml:"market"`
	Risk      risk.Config           `yaml:"risk"`
	Social    social.HTTPConfig     `yaml:"social"`
	Scraper   social.ScraperConfig  `yaml:"scraper"`
	Sentiment sentiment.Config      `yaml:"sentiment"`
	Scoring   scoring.Config        `yaml:"scoring"`
	Thesis    thesis.FactoryConfig  `yaml:"thesis"`
	Scheduler prophecy.Config       `yaml:"scheduler"`
	Worker    WorkerConfig          `yaml:"worker"`
	Metrics   struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns the full default configuration.
func Default() Config {
	var cfg Config
	cfg.Redis = RedisConfig{Addr: "localhost:6379"}
	cfg.Postgres = store.DefaultPostgresConfig()
	cfg.HTTP = httpclient.DefaultConfig()
	cfg.Market = market.DefaultConfig()
	cfg.Risk = risk.DefaultConfig()
	cfg.Social = social.DefaultHTTPConfig()
	cfg.Scraper = social.DefaultScraperConfig()
	cfg.Sentiment = sentiment.DefaultConfig()
	cfg.Scoring = scoring.DefaultConfig()
	cfg.Thesis = thesis.DefaultFactoryConfig()
	cfg.Scheduler = prophecy.DefaultConfig()
	cfg.Worker = WorkerConfig{
		JobTimeout:     time.Minute,
		MinScorePubSub: 1.2,
		SocialProvider: "mock",
	}
	cfg.Metrics.Addr = ":9090"
	return cfg
}

// Load builds the configuration: defaults, the YAML file at path when it
// exists, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Postgres.DSN, "PG_DSN")
	setString(&cfg.Market.BaseURL, "DEXSCREENER_BASE_URL")
	setString(&cfg.Social.Endpoint, "SOCIAL_ENDPOINT")
	setString(&cfg.Scraper.BaseURL, "SCRAPER_BASE_URL")
	setString(&cfg.Sentiment.APIKey, "HUGGINGFACE_API_KEY")
	setString(&cfg.Sentiment.Model, "HUGGINGFACE_MODEL")
	setString(&cfg.Thesis.Default, "AI_PROVIDER")
	setString(&cfg.Thesis.HuggingFace.APIKey, "HUGGINGFACE_API_KEY")
	setString(&cfg.Thesis.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Thesis.AimlAPI.APIKey, "AIMLAPI_API_KEY")
	setString(&cfg.Worker.SocialProvider, "SOCIAL_PROVIDER")
	setString(&cfg.Metrics.Addr, "METRICS_ADDR")

	setBool(&cfg.Thesis.FallbackEnabled, "AI_FALLBACK_ENABLED")
	setBool(&cfg.Thesis.HealthCheckEnabled, "AI_HEALTH_CHECK_ENABLED")
	setDuration(&cfg.Scheduler.Cadence, "PROPHECY_CADENCE")
	setInt(&cfg.Scheduler.MaxPerRun, "PROPHECY_MAX_PER_RUN")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}
