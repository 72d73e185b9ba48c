package thesis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/metrics"
	"github.com/tokensage/tokensage/internal/narrative"
	"github.com/tokensage/tokensage/internal/ratelimit"
)

// FactoryConfig selects the default backend and configures the hosted ones.
type FactoryConfig struct {
	Default            string        `yaml:"default"`
	FallbackEnabled    bool          `yaml:"fallback_enabled"`
	HealthCheckEnabled bool          `yaml:"health_check_enabled"`
	HealthInterval     time.Duration `yaml:"health_interval"`
	HuggingFace        HostedConfig  `yaml:"huggingface"`
	OpenAI             HostedConfig  `yaml:"openai"`
	AimlAPI            HostedConfig  `yaml:"aimlapi"`
}

// DefaultFactoryConfig returns the factory defaults: rule-based generation,
// fallback on, hosted backends unset.
func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{
		Default:            "rule-based",
		FallbackEnabled:    true,
		HealthCheckEnabled: true,
		HealthInterval:     5 * time.Minute,
	}
}

// Factory holds one instance per configured backend plus a health map. The
// default backend is served while healthy; an unhealthy default falls back
// to rule-based unless fallback is disabled.
type Factory struct {
	config    FactoryConfig
	fallback  *RuleBased
	providers map[string]Provider

	mu     sync.RWMutex
	health map[string]bool
}

// NewFactory registers rule-based unconditionally and each hosted backend
// whose API key is configured.
func NewFactory(config FactoryConfig, reg *ratelimit.Registry) (*Factory, error) {
	if config.Default == "" {
		config.Default = "rule-based"
	}
	if config.HealthInterval <= 0 {
		config.HealthInterval = 5 * time.Minute
	}

	f := &Factory{
		config:    config,
		fallback:  NewRuleBased(),
		providers: map[string]Provider{},
		health:    map[string]bool{},
	}
	f.providers[f.fallback.Name()] = f.fallback
	f.health[f.fallback.Name()] = true

	hc := newHostedClient()
	if config.HuggingFace.APIKey != "" {
		p, err := NewHuggingFace(config.HuggingFace, hc, reg)
		if err != nil {
			return nil, err
		}
		f.register(p)
	}
	if config.OpenAI.APIKey != "" {
		p, err := NewOpenAI(config.OpenAI, hc, reg)
		if err != nil {
			return nil, err
		}
		f.register(p)
	}
	if config.AimlAPI.APIKey != "" {
		p, err := NewAimlAPI(config.AimlAPI, hc, reg)
		if err != nil {
			return nil, err
		}
		f.register(p)
	}

	if _, ok := f.providers[config.Default]; !ok {
		return nil, fmt.Errorf("thesis: default provider %q not configured", config.Default)
	}
	return f, nil
}

func (f *Factory) register(p Provider) {
	f.providers[p.Name()] = p
	f.health[p.Name()] = true
}

// Providers returns the registered backend names.
func (f *Factory) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	return names
}

// Fallback returns the rule-based backend.
func (f *Factory) Fallback() Provider { return f.fallback }

// DefaultProvider returns the configured default while it is healthy. An
// unhealthy default falls back to rule-based, or errors when fallback is
// disabled.
func (f *Factory) DefaultProvider() (Provider, error) {
	f.mu.RLock()
	healthy := f.health[f.config.Default]
	f.mu.RUnlock()

	if p, ok := f.providers[f.config.Default]; ok && healthy {
		return p, nil
	}
	if f.config.FallbackEnabled {
		return f.fallback, nil
	}
	return nil, fmt.Errorf("thesis: provider %q unavailable and fallback disabled", f.config.Default)
}

// Healthy reports the recorded health of a backend.
func (f *Factory) Healthy(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.health[name]
}

// StartHealthChecks probes hosted backends on a ticker until ctx is done.
func (f *Factory) StartHealthChecks(ctx context.Context) {
	if !f.config.HealthCheckEnabled {
		return
	}
	go func() {
		ticker := time.NewTicker(f.config.HealthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.RunHealthChecks(ctx)
			}
		}
	}()
}

// RunHealthChecks probes every backend once with a trivial generation.
// Rule-based is always healthy.
func (f *Factory) RunHealthChecks(ctx context.Context) {
	for name, p := range f.providers {
		if name == f.fallback.Name() {
			f.setHealth(name, true)
			continue
		}
		_, err := p.GenerateThesis(ctx, TokenData{}, nil, narrative.Signals{Themes: []string{}})
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("Thesis provider health check failed")
		}
		f.setHealth(name, err == nil)
	}
}

func (f *Factory) setHealth(name string, ok bool) {
	f.mu.Lock()
	f.health[name] = ok
	f.mu.Unlock()

	v := 0.0
	if ok {
		v = 1
	}
	metrics.ProviderHealth.WithLabelValues(name).Set(v)
}
