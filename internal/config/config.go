package config

import "time"

// GatewayConfig is the root configuration for a gateway instance.
type GatewayConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Exchange    ExchangeConfig    `yaml:"exchange"`
	Metadata    MetadataConfig    `yaml:"metadata"`
	Cache       CacheConfig       `yaml:"cache"`
	Limits      LimitsConfig      `yaml:"limits"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Poller      PollerConfig      `yaml:"poller"`
}

// InstanceConfig identifies this gateway.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	TrustForwardedFor bool          `yaml:"trust_forwarded_for"` // Use X-Forwarded-For as client identity
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// UpstreamConfig holds the resilience settings shared by every upstream.
type UpstreamConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`  // Total attempts on HTTP 429, including the first
	RetryBackoff time.Duration `yaml:"retry_backoff"` // Initial delay between 429 attempts
	RatePerSec   float64       `yaml:"rate_per_sec"`  // Outbound pacing, 0 disables
	Burst        int           `yaml:"burst"`
}

// ExchangeConfig holds the exchange API settings.
type ExchangeConfig struct {
	UpstreamConfig `yaml:",inline"`
	QuoteAsset     string `yaml:"quote_asset"`
}

// MetadataConfig holds the coin metadata API settings.
type MetadataConfig struct {
	UpstreamConfig   `yaml:",inline"`
	APIKey           string  `yaml:"api_key"`
	PlaceholderImage *string `yaml:"placeholder_image"` // Explicit "" renders null
}

// CacheConfig holds the TTL cache settings.
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory or redis
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxEntries    int           `yaml:"max_entries"`
	ImageTTL      time.Duration `yaml:"image_ttl"`
	HistoryTTL    time.Duration `yaml:"history_ttl"` // Capped at the end of the queried day
	SearchTTL     time.Duration `yaml:"search_ttl"`
	Redis         RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the Redis cache backend connection.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LimitsConfig holds the admission policies.
type LimitsConfig struct {
	General PolicyConfig `yaml:"general"`
	Hot     PolicyConfig `yaml:"hot"`
}

// PolicyConfig is one fixed-window admission policy.
type PolicyConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// AggregationConfig holds aggregation engine settings.
type AggregationConfig struct {
	EnrichConcurrency int    `yaml:"enrich_concurrency"`
	DefaultTopN       int    `yaml:"default_top_n"`
	MaxTopN           int    `yaml:"max_top_n"`
	HistoryInterval   string `yaml:"history_interval"`
	Location          string `yaml:"location"` // Time zone that defines "today" for history
}

// PollerConfig holds consumer-side polling coordinator settings.
type PollerConfig struct {
	Interval          time.Duration `yaml:"interval"`
	Debounce          time.Duration `yaml:"debounce"`
	Backoff           time.Duration `yaml:"backoff"`
	MaxBackoffRetries int           `yaml:"max_backoff_retries"` // 0 = retry until cancelled
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
}
