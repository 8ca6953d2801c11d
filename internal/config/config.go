// Package config reads process configuration from the environment, an
// optional .env file and an optional YAML provider registry file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderMock = "mock"
	ProviderHTTP = "http"
)

type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	ProvidersFile string

	ProviderTimeout time.Duration
	SearchTimeout   time.Duration

	MatchThreshold     float64
	AdvertiseThreshold float64
	MatchRadiusMeters  float64
	MatchConcurrency   int

	PriceFreshness     time.Duration
	PriceTTL           time.Duration
	PricePruneInterval time.Duration
	OfferTTL           time.Duration

	RateLimitPerMinute      int
	AdminCancellationPolicy string

	Providers []ProviderConfig
}

// ProviderConfig is one entry of the provider registry file. Entries are
// registered in file order, which is also the tie-break order for prices.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	Type    string        `yaml:"type"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`

	// mock only
	AvgLatency float64 `yaml:"avg_latency"`
	FailRate   float64 `yaml:"fail_rate"`
}

type registryFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:               "8080",
		ProviderTimeout:    8 * time.Second,
		SearchTimeout:      15 * time.Second,
		MatchThreshold:     0.85,
		AdvertiseThreshold: 0.99,
		MatchRadiusMeters:  250,
		MatchConcurrency:   16,
		PriceFreshness:     5 * time.Minute,
		PriceTTL:           10 * time.Minute,
		PricePruneInterval: time.Minute,
		OfferTTL:           15 * time.Minute,
		RateLimitPerMinute: 60,
		Providers:          DefaultProviders(),
	}
}

// DefaultProviders is three simulated providers.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "mock1", Type: ProviderMock, AvgLatency: 0.2, FailRate: 0.10},
		{Name: "mock2", Type: ProviderMock, AvgLatency: 0.25, FailRate: 0.12},
		{Name: "mock3", Type: ProviderMock, AvgLatency: 0.15, FailRate: 0.05},
	}
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, starting from Default.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	p := parser{getenv: getenv}

	p.str("PORT", &cfg.Port)
	p.str("DATABASE_URL", &cfg.DatabaseURL)
	p.str("REDIS_URL", &cfg.RedisURL)
	p.str("PROVIDERS_FILE", &cfg.ProvidersFile)
	p.str("ADMIN_CANCELLATION_POLICY", &cfg.AdminCancellationPolicy)
	p.duration("PROVIDER_TIMEOUT", &cfg.ProviderTimeout)
	p.duration("SEARCH_TIMEOUT", &cfg.SearchTimeout)
	p.number("MATCH_THRESHOLD", &cfg.MatchThreshold)
	p.number("ADVERTISE_THRESHOLD", &cfg.AdvertiseThreshold)
	p.number("MATCH_RADIUS_METERS", &cfg.MatchRadiusMeters)
	p.integer("MATCH_CONCURRENCY", &cfg.MatchConcurrency)
	p.duration("PRICE_FRESHNESS", &cfg.PriceFreshness)
	p.duration("PRICE_TTL", &cfg.PriceTTL)
	p.duration("PRICE_PRUNE_INTERVAL", &cfg.PricePruneInterval)
	p.duration("OFFER_TTL", &cfg.OfferTTL)
	p.integer("RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute)
	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}

	if cfg.ProvidersFile != "" {
		ps, err := LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Providers = ps
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadProviders reads a YAML provider registry file.
func LoadProviders(path string) ([]ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}
	for i := range f.Providers {
		if f.Providers[i].Type == "" {
			f.Providers[i].Type = ProviderHTTP
		}
	}
	return f.Providers, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be in (0,1], got %v", c.MatchThreshold))
	}
	if c.AdvertiseThreshold < c.MatchThreshold || c.AdvertiseThreshold > 1 {
		errs = append(errs, fmt.Errorf("ADVERTISE_THRESHOLD must be in [MATCH_THRESHOLD,1], got %v", c.AdvertiseThreshold))
	}
	if c.PriceFreshness > c.PriceTTL {
		errs = append(errs, errors.New("PRICE_FRESHNESS must not exceed PRICE_TTL"))
	}
	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("no providers configured"))
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		switch {
		case strings.TrimSpace(p.Name) == "":
			errs = append(errs, fmt.Errorf("provider %d: name is required", i))
		case seen[p.Name]:
			errs = append(errs, fmt.Errorf("provider %s: duplicate name", p.Name))
		}
		seen[p.Name] = true
		switch p.Type {
		case ProviderMock:
		case ProviderHTTP:
			if p.BaseURL == "" {
				errs = append(errs, fmt.Errorf("provider %s: base_url is required", p.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("provider %s: unknown type %q", p.Name, p.Type))
		}
	}
	return errors.Join(errs...)
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) lookup(key string) (string, bool) {
	v := strings.TrimSpace(p.getenv(key))
	return v, v != ""
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = d
}

func (p *parser) number(key string, dst *float64) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return
	}
	*dst = f
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid positive integer %q", key, v))
		return
	}
	*dst = n
}
