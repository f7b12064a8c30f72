// pricewatch polls a running gateway and prints prices whenever they change.
// Usage: go run ./cmd/pricewatch --gateway http://localhost:4000 --symbols BTC,ETH
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/market-gateway/internal/api"
	"github.com/rickgao/market-gateway/internal/config"
	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/poller"
	"github.com/rickgao/market-gateway/internal/version"
)

func main() {
	gatewayURL := flag.String("gateway", "http://localhost:4000", "gateway base URL")
	symbols := flag.String("symbols", "BTC,ETH", "comma-separated base symbols")
	configPath := flag.String("config", "", "optional config file for poller settings")
	verbose := flag.Bool("verbose", false, "log every poll")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	pollCfg := poller.DefaultConfig()
	if *configPath != "" {
		cfg, err := config.LoadWithDefaults(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		pollCfg = poller.Config{
			Interval:          cfg.Poller.Interval,
			Debounce:          cfg.Poller.Debounce,
			Backoff:           cfg.Poller.Backoff,
			MaxBackoffRetries: cfg.Poller.MaxBackoffRetries,
			FetchTimeout:      cfg.Poller.FetchTimeout,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Retries stay with the coordinator so a 429 moves it into backoff.
	gw := api.NewGateway(api.NewClient(*gatewayURL,
		api.WithLogger(logger),
		api.WithRetries(1, 0),
	))

	list := strings.Split(*symbols, ",")
	coord := poller.New[[]model.PriceQuote](pollCfg, samePrices, nil, logger)

	sub := coord.Subscribe(poller.Key(strings.Join(list, ","), "prices"), func(ctx context.Context) ([]model.PriceQuote, error) {
		return gw.Prices(ctx, list...)
	})
	sub.Observe(func(snap poller.Snapshot[[]model.PriceQuote]) {
		printQuotes(snap.Value)
	})
	sub.Start()

	logger.Info("watching prices",
		"version", version.String(),
		"gateway", *gatewayURL,
		"symbols", list,
		"interval", pollCfg.Interval,
	)

	// Report failures without spamming on every tick.
	status := time.NewTicker(pollCfg.Interval)
	defer status.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := coord.Close(shutdownCtx); err != nil {
				logger.Warn("coordinator close", "error", err)
			}
			return

		case <-status.C:
			snap := sub.Snapshot()
			if snap.State == poller.StateCancelled {
				logger.Error("subscription cancelled", "error", snap.LastError)
				return
			}
			if snap.LastError != nil && snap.LastError != lastErr {
				logger.Warn("poll failed, showing last prices",
					"state", snap.State,
					"last_update", snap.UpdatedAt,
					"error", snap.LastError,
				)
			}
			lastErr = snap.LastError
		}
	}
}

// samePrices ignores LastUpdated, which changes on every response.
func samePrices(a, b []model.PriceQuote) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Symbol != b[i].Symbol ||
			!a[i].Price.Equal(b[i].Price) ||
			!a[i].PercentChange24h.Equal(b[i].PercentChange24h) {
			return false
		}
	}
	return true
}

func printQuotes(quotes []model.PriceQuote) {
	ts := time.Now().Format("15:04:05")
	for _, q := range quotes {
		fmt.Printf("[%s] %-8s %16s  %7s%%\n", ts, q.Symbol, q.Price.String(), q.PercentChange24h.StringFixed(2))
	}
}
