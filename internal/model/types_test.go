package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRankedCoinJSON(t *testing.T) {
	t.Run("numbers and image", func(t *testing.T) {
		img := "https://img.example/btc.png"
		c := RankedCoin{
			Rank:         1,
			Symbol:       "BTC",
			Name:         "BTC",
			Image:        &img,
			CurrentPrice: decimal.RequireFromString("64000.5"),
			High24h:      decimal.RequireFromString("65000"),
			Low24h:       decimal.RequireFromString("63000"),
			TotalVolume:  decimal.RequireFromString("1234.56"),
		}

		data, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}

		got := string(data)
		for _, want := range []string{
			`"rank":1`,
			`"current_price":64000.5`,
			`"total_volume":1234.56`,
			`"image":"https://img.example/btc.png"`,
		} {
			if !strings.Contains(got, want) {
				t.Errorf("json %s missing %s", got, want)
			}
		}
	})

	t.Run("nil image is null", func(t *testing.T) {
		data, err := json.Marshal(RankedCoin{Rank: 2, Symbol: "ETH"})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if !strings.Contains(string(data), `"image":null`) {
			t.Errorf("json %s should contain null image", data)
		}
	})
}

func TestHistoryPointRoundTrip(t *testing.T) {
	p := HistoryPoint{
		Time:  time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC),
		Price: decimal.RequireFromString("101.25"),
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back HistoryPoint
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !back.Time.Equal(p.Time) {
		t.Errorf("Time = %v, want %v", back.Time, p.Time)
	}
	if !back.Price.Equal(p.Price) {
		t.Errorf("Price = %s, want %s", back.Price, p.Price)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"direct", NewError(KindUpstreamTimeout, "GET /x", nil), KindUpstreamTimeout},
		{"wrapped", fmt.Errorf("get ticker: %w", NewError(KindUpstreamFailed, "GET /x", errors.New("500"))), KindUpstreamFailed},
		{"sentinel", ErrInvalidArgument, KindInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("history: %w", Errorf(KindInvalidArgument, "history", "symbol %q is empty", ""))

	if !errors.Is(err, ErrInvalidArgument) {
		t.Error("errors.Is(err, ErrInvalidArgument) = false, want true")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("errors.Is(err, ErrRateLimited) = true, want false")
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewError(KindUpstreamRateLimitExhausted, "GET /api/v3/klines", errors.New("3 attempts"))
	want := "GET /api/v3/klines: upstream_rate_limit_exhausted: 3 attempts"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindIsUpstream(t *testing.T) {
	for _, k := range []Kind{KindUpstreamTimeout, KindUpstreamRateLimitExhausted, KindUpstreamFailed} {
		if !k.IsUpstream() {
			t.Errorf("%v.IsUpstream() = false, want true", k)
		}
	}
	for _, k := range []Kind{KindRateLimited, KindInvalidArgument, KindCacheUnavailable, KindUnknown} {
		if k.IsUpstream() {
			t.Errorf("%v.IsUpstream() = true, want false", k)
		}
	}
}
