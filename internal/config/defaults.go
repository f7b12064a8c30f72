package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerAddr        = ":4000"
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultExchangeURL       = "https://api.binance.com"
	DefaultMetadataURL       = "https://api.coingecko.com/api/v3"
	DefaultExchangeTimeout   = 10 * time.Second
	DefaultMetadataTimeout   = 5 * time.Second
	DefaultMaxAttempts       = 3
	DefaultRetryBackoff      = 1 * time.Second
	DefaultQuoteAsset        = "USDT"
	DefaultPlaceholderImage  = "https://via.placeholder.com/30"
	DefaultCacheBackend      = "memory"
	DefaultSweepInterval     = 1 * time.Minute
	DefaultMaxEntries        = 10000
	DefaultImageTTL          = 60 * time.Second
	DefaultHistoryTTL        = 5 * time.Minute
	DefaultSearchTTL         = 10 * time.Minute
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisKeyPrefix    = "gateway:"
	DefaultGeneralLimit      = 100
	DefaultGeneralWindow     = 15 * time.Minute
	DefaultHotLimit          = 30
	DefaultHotWindow         = 1 * time.Minute
	DefaultEnrichConcurrency = 4
	DefaultTopN              = 10
	DefaultMaxTopN           = 100
	DefaultHistoryInterval   = "5m"
	DefaultLocation          = "UTC"
	DefaultPollInterval      = 5 * time.Second
	DefaultDebounce          = 500 * time.Millisecond
	DefaultPollBackoff       = 1 * time.Second
	DefaultFetchTimeout      = 10 * time.Second
)

// ApplyDefaults fills zero-valued optional fields.
func (c *GatewayConfig) ApplyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Upstream defaults
	applyUpstreamDefaults(&c.Exchange.UpstreamConfig, DefaultExchangeURL, DefaultExchangeTimeout)
	applyUpstreamDefaults(&c.Metadata.UpstreamConfig, DefaultMetadataURL, DefaultMetadataTimeout)
	if c.Exchange.QuoteAsset == "" {
		c.Exchange.QuoteAsset = DefaultQuoteAsset
	}
	if c.Metadata.PlaceholderImage == nil {
		placeholder := DefaultPlaceholderImage
		c.Metadata.PlaceholderImage = &placeholder
	}

	// Cache defaults
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = DefaultSweepInterval
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultMaxEntries
	}
	if c.Cache.ImageTTL == 0 {
		c.Cache.ImageTTL = DefaultImageTTL
	}
	if c.Cache.HistoryTTL == 0 {
		c.Cache.HistoryTTL = DefaultHistoryTTL
	}
	if c.Cache.SearchTTL == 0 {
		c.Cache.SearchTTL = DefaultSearchTTL
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = DefaultRedisAddr
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Limits defaults
	applyPolicyDefaults(&c.Limits.General, DefaultGeneralLimit, DefaultGeneralWindow)
	applyPolicyDefaults(&c.Limits.Hot, DefaultHotLimit, DefaultHotWindow)

	// Aggregation defaults
	if c.Aggregation.EnrichConcurrency == 0 {
		c.Aggregation.EnrichConcurrency = DefaultEnrichConcurrency
	}
	if c.Aggregation.DefaultTopN == 0 {
		c.Aggregation.DefaultTopN = DefaultTopN
	}
	if c.Aggregation.MaxTopN == 0 {
		c.Aggregation.MaxTopN = DefaultMaxTopN
	}
	if c.Aggregation.HistoryInterval == "" {
		c.Aggregation.HistoryInterval = DefaultHistoryInterval
	}
	if c.Aggregation.Location == "" {
		c.Aggregation.Location = DefaultLocation
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Debounce == 0 {
		c.Poller.Debounce = DefaultDebounce
	}
	if c.Poller.Backoff == 0 {
		c.Poller.Backoff = DefaultPollBackoff
	}
	if c.Poller.FetchTimeout == 0 {
		c.Poller.FetchTimeout = DefaultFetchTimeout
	}
}

func applyUpstreamDefaults(u *UpstreamConfig, baseURL string, timeout time.Duration) {
	if u.BaseURL == "" {
		u.BaseURL = baseURL
	}
	if u.Timeout == 0 {
		u.Timeout = timeout
	}
	if u.MaxAttempts == 0 {
		u.MaxAttempts = DefaultMaxAttempts
	}
	if u.RetryBackoff == 0 {
		u.RetryBackoff = DefaultRetryBackoff
	}
	if u.RatePerSec > 0 && u.Burst == 0 {
		u.Burst = 1
	}
}

func applyPolicyDefaults(p *PolicyConfig, limit int, window time.Duration) {
	if p.Limit == 0 {
		p.Limit = limit
	}
	if p.Window == 0 {
		p.Window = window
	}
}
