package market

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/market-gateway/internal/api"
	"github.com/rickgao/market-gateway/internal/cache"
	"github.com/rickgao/market-gateway/internal/clock"
	"github.com/rickgao/market-gateway/internal/model"
)

func TestToday(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	now := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	w := Today(now, time.UTC)
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !w.Start.Equal(want) {
		t.Errorf("UTC start = %v, want %v", w.Start, want)
	}
	if !w.End.Equal(now) {
		t.Errorf("End = %v, want %v", w.End, now)
	}

	// 20:00 UTC is already 05:00 on March 2nd in Tokyo.
	w = Today(now, tokyo)
	if want := time.Date(2024, 3, 2, 0, 0, 0, 0, tokyo); !w.Start.Equal(want) {
		t.Errorf("Tokyo start = %v, want %v", w.Start, want)
	}
}

func TestHistory_CachedWithinTTL(t *testing.T) {
	var calls atomic.Int32
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotQuery.Store(r.URL.Query())
		w.Write([]byte(`[
			[1709251200000,"100.0","110.0","95.0","105.5","12.3",1709251499999],
			[1709251500000,"105.5","106.0","104.0","104.25","4.1",1709251799999]
		]`))
	}))
	defer server.Close()

	exchange := api.NewExchange(api.NewClient(server.URL))
	clk := clock.NewFake(testNow)
	store := cache.NewMemory(cache.MemoryConfig{}, clk, nil)
	svc := NewService(DefaultConfig(), exchange, nil, store, clk, nil)
	ctx := context.Background()

	first, err := svc.HistoryJSON(ctx, "btc", svc.Today())
	if err != nil {
		t.Fatalf("HistoryJSON: %v", err)
	}
	clk.Advance(time.Minute)
	second, err := svc.HistoryJSON(ctx, "BTC", Today(clk.Now(), time.UTC))
	if err != nil {
		t.Fatalf("HistoryJSON: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("responses differ:\n%s\n%s", first, second)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}

	q := gotQuery.Load().(url.Values)
	midnight := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := q.Get("symbol"); got != "BTCUSDT" {
		t.Errorf("symbol = %q, want BTCUSDT", got)
	}
	if got := q.Get("interval"); got != "5m" {
		t.Errorf("interval = %q, want 5m", got)
	}
	if got := q.Get("startTime"); got != strconv.FormatInt(midnight.UnixMilli(), 10) {
		t.Errorf("startTime = %q, want midnight", got)
	}

	points, err := svc.History(ctx, "BTC", svc.Today())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(points) != 2 || !points[1].Price.Equal(decimal.RequireFromString("104.25")) {
		t.Errorf("points = %+v, want close prices", points)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls after History = %d, want 1", calls.Load())
	}

	clk.Advance(5 * time.Minute)
	if _, err := svc.HistoryJSON(ctx, "BTC", svc.Today()); err != nil {
		t.Fatalf("HistoryJSON: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls after ttl = %d, want 2", calls.Load())
	}
}

func TestHistoryTTL(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"mid-day uses configured ttl", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 5 * time.Minute},
		{"near midnight caps at rollover", time.Date(2024, 3, 1, 23, 58, 0, 0, time.UTC), 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(DefaultConfig(), &fakeExchange{}, nil, nil, clock.NewFake(tt.now), nil)
			if got := svc.historyTTL(Today(tt.now, time.UTC).Start); got != tt.want {
				t.Errorf("historyTTL = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHistory_DayRolloverChangesKey(t *testing.T) {
	ex := &fakeExchange{candles: []model.Candle{{Time: testNow, Close: decimal.NewFromInt(1)}}}
	svc, clk, _ := newTestService(DefaultConfig(), ex, nil)
	ctx := context.Background()

	clk.Set(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC))
	svc.HistoryJSON(ctx, "BTC", svc.Today())

	clk.Set(time.Date(2024, 3, 2, 0, 0, 30, 0, time.UTC))
	svc.HistoryJSON(ctx, "BTC", svc.Today())

	if ex.klineCalls.Load() != 2 {
		t.Errorf("kline calls = %d, want 2 across the day boundary", ex.klineCalls.Load())
	}
	if got := ex.request().StartTime; got != time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("StartTime = %d, want new day", got)
	}
}

func TestHistory_CoalescesConcurrentMisses(t *testing.T) {
	ex := &fakeExchange{
		candles:   []model.Candle{{Time: testNow, Close: decimal.NewFromInt(7)}},
		klineGate: make(chan struct{}),
	}
	svc, _, _ := newTestService(DefaultConfig(), ex, nil)

	results := make([][]byte, 5)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := svc.HistoryJSON(context.Background(), "ETH", svc.Today())
			if err != nil {
				t.Errorf("HistoryJSON: %v", err)
				return
			}
			results[i] = raw
		}()
	}

	deadline := time.Now().Add(time.Second)
	for ex.klineCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(ex.klineGate)
	wg.Wait()

	if ex.klineCalls.Load() != 1 {
		t.Errorf("kline calls = %d, want 1", ex.klineCalls.Load())
	}
	for i := 1; i < len(results); i++ {
		if !bytes.Equal(results[0], results[i]) {
			t.Errorf("result %d differs: %s vs %s", i, results[i], results[0])
		}
	}
}

func TestHistory_CancelledCallerDoesNotFailOthers(t *testing.T) {
	ex := &fakeExchange{
		candles:   []model.Candle{{Time: testNow, Close: decimal.NewFromInt(7)}},
		klineGate: make(chan struct{}),
	}
	svc, _, _ := newTestService(DefaultConfig(), ex, nil)
	window := svc.Today()

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.HistoryJSON(ctxA, "ETH", window)
		errA <- err
	}()

	deadline := time.Now().Add(time.Second)
	for ex.klineCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		raw []byte
		err error
	}
	resB := make(chan result, 1)
	go func() {
		raw, err := svc.HistoryJSON(context.Background(), "ETH", window)
		resB <- result{raw, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}

	close(ex.klineGate)
	b := <-resB
	if b.err != nil {
		t.Fatalf("waiting caller error = %v, want success", b.err)
	}
	if string(b.raw) == "" {
		t.Error("waiting caller got empty series")
	}

	// The shared fetch completed and was cached despite the cancellation.
	if _, err := svc.HistoryJSON(context.Background(), "ETH", window); err != nil {
		t.Fatalf("HistoryJSON: %v", err)
	}
	if ex.klineCalls.Load() != 1 {
		t.Errorf("kline calls = %d, want 1", ex.klineCalls.Load())
	}
}

func TestHistory_Errors(t *testing.T) {
	t.Run("empty symbol", func(t *testing.T) {
		ex := &fakeExchange{}
		svc, _, _ := newTestService(DefaultConfig(), ex, nil)

		_, err := svc.History(context.Background(), "  ", svc.Today())
		if !errors.Is(err, model.ErrInvalidArgument) {
			t.Errorf("error = %v, want invalid argument", err)
		}
		if ex.klineCalls.Load() != 0 {
			t.Error("upstream called for invalid symbol")
		}
	})

	t.Run("inverted window", func(t *testing.T) {
		ex := &fakeExchange{}
		svc, _, _ := newTestService(DefaultConfig(), ex, nil)

		w := Window{Start: testNow, End: testNow.Add(-time.Hour)}
		if _, err := svc.History(context.Background(), "BTC", w); !errors.Is(err, model.ErrInvalidArgument) {
			t.Errorf("error = %v, want invalid argument", err)
		}
	})

	t.Run("upstream failure is not cached", func(t *testing.T) {
		ex := &fakeExchange{klineErr: model.NewError(model.KindUpstreamRateLimitExhausted, "GET /api/v3/klines", nil)}
		svc, _, store := newTestService(DefaultConfig(), ex, nil)

		_, err := svc.History(context.Background(), "BTC", svc.Today())
		if model.KindOf(err) != model.KindUpstreamRateLimitExhausted {
			t.Errorf("error = %v, want upstream_rate_limit_exhausted", err)
		}
		if store.Len() != 0 {
			t.Errorf("cache entries = %d, want 0", store.Len())
		}
	})

	t.Run("broken cache degrades to direct fetch", func(t *testing.T) {
		ex := &fakeExchange{candles: []model.Candle{{Time: testNow, Close: decimal.NewFromInt(3)}}}
		svc := NewService(DefaultConfig(), ex, nil, &brokenStore{}, clock.NewFake(testNow), nil)

		for i := 0; i < 2; i++ {
			if _, err := svc.History(context.Background(), "BTC", svc.Today()); err != nil {
				t.Fatalf("History: %v", err)
			}
		}
		if ex.klineCalls.Load() != 2 {
			t.Errorf("kline calls = %d, want 2", ex.klineCalls.Load())
		}
	})
}
