package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/market-gateway/internal/api"
	"github.com/rickgao/market-gateway/internal/cache"
	"github.com/rickgao/market-gateway/internal/clock"
	"github.com/rickgao/market-gateway/internal/config"
	"github.com/rickgao/market-gateway/internal/gateway"
	"github.com/rickgao/market-gateway/internal/market"
	"github.com/rickgao/market-gateway/internal/ratelimit"
	"github.com/rickgao/market-gateway/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/gateway.local.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logger until the configured one is available
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting gateway",
		version.Attr(),
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	clk := clock.Real()

	// Create cache backend
	store := newStore(ctx, cfg.Cache, clk, logger)
	defer store.Close()

	// Create upstream clients
	exchange := api.NewExchange(newClient(cfg.Exchange.UpstreamConfig, logger))
	metadata := api.NewMetadata(newClient(cfg.Metadata.UpstreamConfig, logger,
		api.WithAPIKey(api.MetadataKeyHeader, cfg.Metadata.APIKey),
	))

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.Exchange.Timeout)
	if err := exchange.Ping(pingCtx); err != nil {
		// Requests fail with upstream errors until the exchange is reachable.
		logger.Warn("exchange not reachable", "url", cfg.Exchange.BaseURL, "error", err)
	}
	pingCancel()

	// Create aggregation engine
	loc, err := time.LoadLocation(cfg.Aggregation.Location)
	if err != nil {
		logger.Error("failed to load location", "location", cfg.Aggregation.Location, "error", err)
		os.Exit(1)
	}

	service := market.NewService(market.Config{
		QuoteAsset:        cfg.Exchange.QuoteAsset,
		EnrichConcurrency: cfg.Aggregation.EnrichConcurrency,
		DefaultTopN:       cfg.Aggregation.DefaultTopN,
		MaxTopN:           cfg.Aggregation.MaxTopN,
		HistoryInterval:   cfg.Aggregation.HistoryInterval,
		Location:          loc,
		PlaceholderImage:  *cfg.Metadata.PlaceholderImage,
		ImageTTL:          cfg.Cache.ImageTTL,
		HistoryTTL:        cfg.Cache.HistoryTTL,
		SearchTTL:         cfg.Cache.SearchTTL,
	}, exchange, metadata, store, clk, logger)

	// Create admission limiter
	limiter := ratelimit.New(clk, cfg.Limits.Hot.Window, logger)
	defer limiter.Close()

	// Create HTTP server
	server := gateway.NewServer(gateway.Config{
		Addr:              cfg.Server.Addr,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		TrustForwardedFor: cfg.Server.TrustForwardedFor,
		General: ratelimit.Policy{
			Name:   "general",
			Limit:  cfg.Limits.General.Limit,
			Window: cfg.Limits.General.Window,
		},
		Hot: ratelimit.Policy{
			Name:   "hot",
			Limit:  cfg.Limits.Hot.Limit,
			Window: cfg.Limits.Hot.Window,
		},
	}, service, limiter, []gateway.HealthCheck{
		{Name: "cache", Ping: store.Ping},
		{Name: "exchange", Critical: true, Ping: exchange.Ping},
	}, logger)

	go func() {
		if err := server.ListenAndServe(); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("gateway running",
		"addr", cfg.Server.Addr,
		"cache", cfg.Cache.Backend,
		"quote_asset", cfg.Exchange.QuoteAsset,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}

	logger.Info("gateway stopped")
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// newClient builds an upstream client with the shared resilience settings.
func newClient(cfg config.UpstreamConfig, logger *slog.Logger, opts ...api.ClientOption) *api.Client {
	opts = append([]api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.Timeout),
		api.WithRetries(cfg.MaxAttempts, cfg.RetryBackoff),
		api.WithRateLimit(cfg.RatePerSec, cfg.Burst),
	}, opts...)
	return api.NewClient(cfg.BaseURL, opts...)
}

// newStore creates the configured cache backend. An unreachable Redis is
// logged but not fatal; the service degrades to uncached upstream reads.
func newStore(ctx context.Context, cfg config.CacheConfig, clk clock.Clock, logger *slog.Logger) cache.Store {
	switch cfg.Backend {
	case "redis":
		store := cache.NewRedis(cache.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		if err := store.Ping(pingCtx); err != nil {
			logger.Warn("redis not reachable, serving uncached", "addr", cfg.Redis.Addr, "error", err)
		} else {
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
		return store

	default:
		return cache.NewMemory(cache.MemoryConfig{
			SweepInterval: cfg.SweepInterval,
			MaxEntries:    cfg.MaxEntries,
		}, clk, logger)
	}
}
