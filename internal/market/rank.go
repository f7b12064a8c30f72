package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/market-gateway/internal/model"
)

// RankTopN returns the n highest-volume pairs in the quote asset, ranked
// 1..n. Ties keep upstream order. n == 0 selects the configured default.
func (s *Service) RankTopN(ctx context.Context, n int) ([]model.RankedCoin, error) {
	if n == 0 {
		n = s.cfg.DefaultTopN
	}
	if n < 1 || n > s.cfg.MaxTopN {
		return nil, model.Errorf(model.KindInvalidArgument, "rank top n", "n must be between 1 and %d, got %d", s.cfg.MaxTopN, n)
	}

	var (
		tickers []model.TickerRecord
		infos   []model.InstrumentInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tickers, err = s.exchange.Ticker24h(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		infos, err = s.exchange.ExchangeInfo(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rank top %d: %w", n, err)
	}

	ranked := s.rank(tickers, infos, n)
	s.enrichImages(ctx, ranked)

	return ranked, nil
}

// rank joins tickers to instrument metadata, filters to the quote asset,
// and keeps the top n by volume.
func (s *Service) rank(tickers []model.TickerRecord, infos []model.InstrumentInfo, n int) []model.RankedCoin {
	bases := make(map[string]string, len(infos))
	for _, info := range infos {
		if s.isQuotePair(info.PairSymbol) {
			bases[info.PairSymbol] = info.BaseAsset
		}
	}

	candidates := make([]model.TickerRecord, 0, len(tickers))
	for _, t := range tickers {
		if s.isQuotePair(t.Symbol) {
			candidates = append(candidates, t)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Volume.GreaterThan(candidates[j].Volume)
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	ranked := make([]model.RankedCoin, len(candidates))
	for i, t := range candidates {
		base, ok := bases[t.Symbol]
		if !ok {
			base = s.baseOf(t.Symbol)
		}
		ranked[i] = model.RankedCoin{
			Rank:         i + 1,
			Symbol:       base,
			Name:         base,
			CurrentPrice: t.LastPrice,
			High24h:      t.HighPrice,
			Low24h:       t.LowPrice,
			TotalVolume:  t.Volume,
		}
	}
	return ranked
}

// enrichImages resolves every image concurrently, bounded by
// EnrichConcurrency. It never fails; unresolved images get the placeholder.
func (s *Service) enrichImages(ctx context.Context, coins []model.RankedCoin) {
	var g errgroup.Group
	g.SetLimit(s.cfg.EnrichConcurrency)

	for i := range coins {
		g.Go(func() error {
			coins[i].Image = s.imageFor(ctx, coins[i].Symbol)
			return nil
		})
	}
	g.Wait()
}

func (s *Service) imageFor(ctx context.Context, symbol string) *string {
	key := "image:" + strings.ToUpper(symbol)

	if cached, ok := s.cacheGet(ctx, key); ok {
		url := string(cached)
		return &url
	}

	if s.images != nil {
		url, err := s.images.ImageFor(ctx, symbol)
		if err == nil && url != "" {
			s.cacheSet(ctx, key, []byte(url), s.cfg.ImageTTL)
			return &url
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("image lookup failed, using placeholder", "symbol", symbol, "err", err)
		}
	}

	return s.placeholder()
}

func (s *Service) placeholder() *string {
	if s.cfg.PlaceholderImage == "" {
		return nil
	}
	p := s.cfg.PlaceholderImage
	return &p
}
