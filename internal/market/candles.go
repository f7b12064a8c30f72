package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/market-gateway/internal/api"
	"github.com/rickgao/market-gateway/internal/model"
)

// Candlesticks returns OHLCV bars for symbol between start and end.
// Arguments are validated before any upstream call.
func (s *Service) Candlesticks(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.Candle, error) {
	const op = "candlesticks"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case symbol == "":
		return nil, model.Errorf(model.KindInvalidArgument, op, "symbol is required")
	case start.IsZero() || end.IsZero():
		return nil, model.Errorf(model.KindInvalidArgument, op, "start and end are required")
	case end.Before(start):
		return nil, model.Errorf(model.KindInvalidArgument, op, "end %s is before start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	case !model.ValidInterval(interval):
		return nil, model.Errorf(model.KindInvalidArgument, op, "interval %q is not supported", interval)
	}

	candles, err := s.exchange.Klines(ctx, api.KlinesRequest{
		Symbol:    s.pairFor(symbol),
		Interval:  interval,
		StartTime: start.UnixMilli(),
		EndTime:   end.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("candlesticks %s: %w", symbol, err)
	}
	return candles, nil
}
