package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rickgao/market-gateway/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if err := c.Exchange.validate("exchange"); err != nil {
		return err
	}
	if err := c.Metadata.validate("metadata"); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.MaxEntries < 1 {
		return errors.New("cache.max_entries must be >= 1")
	}

	if err := c.Limits.General.validate("limits.general"); err != nil {
		return err
	}
	if err := c.Limits.Hot.validate("limits.hot"); err != nil {
		return err
	}

	if c.Aggregation.EnrichConcurrency < 1 {
		return errors.New("aggregation.enrich_concurrency must be >= 1")
	}
	if c.Aggregation.DefaultTopN < 1 || c.Aggregation.DefaultTopN > c.Aggregation.MaxTopN {
		return fmt.Errorf("aggregation.default_top_n must be between 1 and max_top_n (%d), got %d",
			c.Aggregation.MaxTopN, c.Aggregation.DefaultTopN)
	}
	if !model.ValidInterval(c.Aggregation.HistoryInterval) {
		return fmt.Errorf("aggregation.history_interval %q is not a supported kline interval", c.Aggregation.HistoryInterval)
	}
	if _, err := time.LoadLocation(c.Aggregation.Location); err != nil {
		return fmt.Errorf("aggregation.location: %w", err)
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}
	if c.Poller.MaxBackoffRetries < 0 {
		return errors.New("poller.max_backoff_retries must be >= 0")
	}

	return nil
}

func (u *UpstreamConfig) validate(prefix string) error {
	parsed, err := url.Parse(u.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s.base_url must be an absolute URL, got %q", prefix, u.BaseURL)
	}
	if u.MaxAttempts < 1 {
		return fmt.Errorf("%s.max_attempts must be >= 1", prefix)
	}
	if u.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be > 0", prefix)
	}
	if u.RatePerSec < 0 {
		return fmt.Errorf("%s.rate_per_sec must be >= 0", prefix)
	}
	return nil
}

func (p *PolicyConfig) validate(prefix string) error {
	if p.Limit < 1 {
		return fmt.Errorf("%s.limit must be >= 1", prefix)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%s.window must be > 0", prefix)
	}
	return nil
}
