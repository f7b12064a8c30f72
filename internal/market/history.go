package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/market-gateway/internal/api"
	"github.com/rickgao/market-gateway/internal/model"
)

// historyFetchTimeout bounds a coalesced history fetch, which runs detached
// from the requests waiting on it.
const historyFetchTimeout = 30 * time.Second

// Window is the time range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Today returns the window from local midnight in loc up to now.
func Today(now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{Start: midnight, End: now}
}

// Today returns the current same-day window in the configured location.
func (s *Service) Today() Window {
	return Today(s.clk.Now(), s.cfg.Location)
}

// History returns close prices for symbol over window.
func (s *Service) History(ctx context.Context, symbol string, window Window) ([]model.HistoryPoint, error) {
	raw, err := s.HistoryJSON(ctx, symbol, window)
	if err != nil {
		return nil, err
	}

	var points []model.HistoryPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("history %s: decode cached series: %w", symbol, err)
	}
	return points, nil
}

// HistoryJSON returns the encoded history series. Repeat calls for the same
// day within the cache TTL return identical bytes without an upstream call.
func (s *Service) HistoryJSON(ctx context.Context, symbol string, window Window) (json.RawMessage, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, model.Errorf(model.KindInvalidArgument, "history", "symbol is required")
	}
	if window.End.Before(window.Start) {
		return nil, model.Errorf(model.KindInvalidArgument, "history", "end %s is before start %s",
			window.End.Format(time.RFC3339), window.Start.Format(time.RFC3339))
	}

	key := historyKey(symbol, window.Start)
	if cached, ok := s.cacheGet(ctx, key); ok {
		return cached, nil
	}

	// The shared fetch is detached from every caller; each one stops
	// waiting on its own context.
	ch := s.history.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyFetchTimeout)
		defer cancel()
		return s.fetchHistory(fetchCtx, symbol, key, window)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("history %s: %w", symbol, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("history fetch coalesced", "symbol", symbol)
		}
		return res.Val.([]byte), nil
	}
}

func (s *Service) fetchHistory(ctx context.Context, symbol, key string, window Window) ([]byte, error) {
	candles, err := s.exchange.Klines(ctx, api.KlinesRequest{
		Symbol:    s.pairFor(symbol),
		Interval:  s.cfg.HistoryInterval,
		StartTime: window.Start.UnixMilli(),
		EndTime:   window.End.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}

	points := make([]model.HistoryPoint, len(candles))
	for i, c := range candles {
		points[i] = model.HistoryPoint{Time: c.Time, Price: c.Close}
	}

	raw, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("history %s: encode: %w", symbol, err)
	}

	if ttl := s.historyTTL(window.Start); ttl > 0 {
		s.cacheSet(ctx, key, raw, ttl)
	}
	return raw, nil
}

// historyTTL is the configured TTL capped at the end of the window's day,
// so a series never outlives the day it describes.
func (s *Service) historyTTL(start time.Time) time.Duration {
	local := start.In(s.cfg.Location)
	endOfDay := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, s.cfg.Location)

	ttl := s.cfg.HistoryTTL
	if untilRollover := endOfDay.Sub(s.clk.Now()); untilRollover < ttl {
		ttl = untilRollover
	}
	return ttl
}

func historyKey(symbol string, start time.Time) string {
	return "history:" + symbol + ":" + strconv.FormatInt(start.UnixMilli(), 10)
}
