package market

import (
	"context"
	"fmt"
	"strings"

	"github.com/rickgao/market-gateway/internal/model"
)

// PricesFor returns current quotes for the requested base symbols, in
// upstream order. Symbols the exchange does not list are absent.
func (s *Service) PricesFor(ctx context.Context, symbols []string) ([]model.PriceQuote, error) {
	want := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			want[sym] = true
		}
	}
	if len(want) == 0 {
		return nil, model.Errorf(model.KindInvalidArgument, "prices", "at least one symbol is required")
	}

	tickers, err := s.exchange.Ticker24h(ctx)
	if err != nil {
		return nil, fmt.Errorf("prices: %w", err)
	}

	now := s.clk.Now().UTC()
	quotes := make([]model.PriceQuote, 0, len(want))
	for _, t := range tickers {
		if !s.isQuotePair(t.Symbol) {
			continue
		}
		base := s.baseOf(t.Symbol)
		if !want[base] {
			continue
		}
		quotes = append(quotes, model.PriceQuote{
			Symbol:           base,
			Price:            t.LastPrice,
			PercentChange24h: t.PriceChangePercent,
			LastUpdated:      now,
		})
	}

	return quotes, nil
}
