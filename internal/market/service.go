// Package market implements the Aggregation Engine component.
//
// The Service joins the exchange's 24h ticker with its instrument list into
// ranked views, resolves coin images through the cache with bounded
// concurrency, and serves intraday history and candlesticks. Failures of
// primary data propagate with their Kind; image lookups degrade to a
// placeholder instead.
package market

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/market-gateway/internal/api"
	"github.com/rickgao/market-gateway/internal/cache"
	"github.com/rickgao/market-gateway/internal/clock"
	"github.com/rickgao/market-gateway/internal/model"
)

// Exchange provides primary market data.
type Exchange interface {
	Ticker24h(ctx context.Context) ([]model.TickerRecord, error)
	ExchangeInfo(ctx context.Context) ([]model.InstrumentInfo, error)
	Klines(ctx context.Context, req api.KlinesRequest) ([]model.Candle, error)
}

// ImageResolver looks up a coin image URL by base symbol.
type ImageResolver interface {
	ImageFor(ctx context.Context, symbol string) (string, error)
}

// Config holds Aggregation Engine configuration.
type Config struct {
	QuoteAsset        string         // Pairs are filtered to this quote (default: USDT)
	EnrichConcurrency int            // Max concurrent image lookups (default: 4)
	DefaultTopN       int            // Used when the caller passes 0 (default: 10)
	MaxTopN           int            // Largest accepted n (default: 100)
	HistoryInterval   string         // Kline interval for history (default: 5m)
	Location          *time.Location // Defines "today" for history (default: UTC)
	PlaceholderImage  string         // Used when no image resolves; "" renders null
	ImageTTL          time.Duration
	HistoryTTL        time.Duration // Capped at the end of the queried day
	SearchTTL         time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QuoteAsset:        "USDT",
		EnrichConcurrency: 4,
		DefaultTopN:       10,
		MaxTopN:           100,
		HistoryInterval:   "5m",
		Location:          time.UTC,
		PlaceholderImage:  "https://via.placeholder.com/30",
		ImageTTL:          60 * time.Second,
		HistoryTTL:        5 * time.Minute,
		SearchTTL:         10 * time.Minute,
	}
}

// Service is the Aggregation Engine. It is safe for concurrent use and
// holds no state of its own beyond the shared cache.
type Service struct {
	cfg      Config
	exchange Exchange
	images   ImageResolver
	store    cache.Store
	clk      clock.Clock
	logger   *slog.Logger

	// Coalesces concurrent cache misses for the same history key.
	history singleflight.Group
}

// NewService creates a new Aggregation Engine.
func NewService(cfg Config, exchange Exchange, images ImageResolver, store cache.Store, clk clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.EnrichConcurrency < 1 {
		cfg.EnrichConcurrency = 1
	}

	return &Service{
		cfg:      cfg,
		exchange: exchange,
		images:   images,
		store:    store,
		clk:      clk,
		logger:   logger,
	}
}

// cacheGet reads through the store, logging and ignoring backend failures
// so callers fall back to the upstream.
func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.store == nil {
		return nil, false
	}
	val, err := s.store.Get(ctx, key)
	if err == nil {
		return val, true
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.logger.Warn("cache read failed, fetching directly", "key", key, "err", err)
	}
	return nil, false
}

func (s *Service) cacheSet(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, val, ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "err", err)
	}
}

// pairFor builds the exchange pair symbol for a base symbol.
func (s *Service) pairFor(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + s.cfg.QuoteAsset
}

// baseOf strips the configured quote asset from a pair symbol.
func (s *Service) baseOf(pair string) string {
	return strings.TrimSuffix(pair, s.cfg.QuoteAsset)
}

func (s *Service) isQuotePair(pair string) bool {
	return strings.HasSuffix(pair, s.cfg.QuoteAsset) && len(pair) > len(s.cfg.QuoteAsset)
}
