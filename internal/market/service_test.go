package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/market-gateway/internal/api"
	"github.com/rickgao/market-gateway/internal/cache"
	"github.com/rickgao/market-gateway/internal/clock"
	"github.com/rickgao/market-gateway/internal/model"
)

var testNow = time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

// fakeExchange serves fixed snapshots and counts calls.
type fakeExchange struct {
	tickers []model.TickerRecord
	infos   []model.InstrumentInfo
	candles []model.Candle

	tickerErr error
	infoErr   error
	klineErr  error

	// Optional gate; Klines blocks until it is closed.
	klineGate chan struct{}

	tickerCalls atomic.Int32
	infoCalls   atomic.Int32
	klineCalls  atomic.Int32

	mu          sync.Mutex
	lastRequest api.KlinesRequest
}

func (f *fakeExchange) Ticker24h(ctx context.Context) ([]model.TickerRecord, error) {
	f.tickerCalls.Add(1)
	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	return f.tickers, nil
}

func (f *fakeExchange) ExchangeInfo(ctx context.Context) ([]model.InstrumentInfo, error) {
	f.infoCalls.Add(1)
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.infos, nil
}

func (f *fakeExchange) Klines(ctx context.Context, req api.KlinesRequest) ([]model.Candle, error) {
	f.klineCalls.Add(1)
	f.mu.Lock()
	f.lastRequest = req
	f.mu.Unlock()

	if f.klineGate != nil {
		select {
		case <-f.klineGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.klineErr != nil {
		return nil, f.klineErr
	}
	return f.candles, nil
}

func (f *fakeExchange) request() api.KlinesRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRequest
}

// fakeImages resolves from a fixed map and tracks concurrency.
type fakeImages struct {
	urls  map[string]string
	delay time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeImages) ImageFor(ctx context.Context, symbol string) (string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if url, ok := f.urls[symbol]; ok {
		return url, nil
	}
	return "", api.ErrImageNotFound
}

// brokenStore fails every operation the way an unreachable backend does.
type brokenStore struct {
	gets atomic.Int32
}

func (b *brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	b.gets.Add(1)
	return nil, model.NewError(model.KindCacheUnavailable, "get", errors.New("connection refused"))
}

func (b *brokenStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return model.NewError(model.KindCacheUnavailable, "set", errors.New("connection refused"))
}

func (b *brokenStore) Delete(ctx context.Context, key string) error { return nil }
func (b *brokenStore) Clear(ctx context.Context) error              { return nil }
func (b *brokenStore) Ping(ctx context.Context) error {
	return model.NewError(model.KindCacheUnavailable, "ping", errors.New("connection refused"))
}
func (b *brokenStore) Close() error { return nil }

func ticker(symbol, volume string) model.TickerRecord {
	return model.TickerRecord{
		Symbol:             symbol,
		LastPrice:          decimal.RequireFromString("10"),
		HighPrice:          decimal.RequireFromString("11"),
		LowPrice:           decimal.RequireFromString("9"),
		Volume:             decimal.RequireFromString(volume),
		PriceChangePercent: decimal.RequireFromString("1.5"),
	}
}

func instrument(base, quote string) model.InstrumentInfo {
	return model.InstrumentInfo{PairSymbol: base + quote, BaseAsset: base, QuoteAsset: quote}
}

func newTestService(cfg Config, ex Exchange, images ImageResolver) (*Service, *clock.Fake, *cache.Memory) {
	clk := clock.NewFake(testNow)
	store := cache.NewMemory(cache.MemoryConfig{}, clk, nil)
	return NewService(cfg, ex, images, store, clk, nil), clk, store
}
