package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickgao/market-gateway/internal/model"
)

// MaxSearchResults caps Search output.
const MaxSearchResults = 10

// Search matches query against quote-asset pairs, by base asset prefix or
// pair substring, ignoring case.
func (s *Service) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, model.Errorf(model.KindInvalidArgument, "search", "query is required")
	}

	instruments, err := s.instruments(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, MaxSearchResults)
	for _, inst := range instruments {
		if !strings.HasPrefix(strings.ToLower(inst.BaseAsset), q) &&
			!strings.Contains(strings.ToLower(inst.PairSymbol), q) {
			continue
		}
		results = append(results, model.SearchResult{
			Symbol: inst.BaseAsset,
			Name:   inst.BaseAsset,
			Pair:   inst.PairSymbol,
		})
		if len(results) == MaxSearchResults {
			break
		}
	}

	return results, nil
}

// instruments returns the quote-asset pairs, cached for SearchTTL.
func (s *Service) instruments(ctx context.Context) ([]model.InstrumentInfo, error) {
	key := "instruments:" + s.cfg.QuoteAsset

	if cached, ok := s.cacheGet(ctx, key); ok {
		var list []model.InstrumentInfo
		if err := json.Unmarshal(cached, &list); err == nil {
			return list, nil
		}
		s.logger.Warn("discarding undecodable instrument cache entry", "key", key)
	}

	infos, err := s.exchange.ExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	list := make([]model.InstrumentInfo, 0, len(infos))
	for _, info := range infos {
		if s.isQuotePair(info.PairSymbol) {
			list = append(list, info)
		}
	}

	if raw, err := json.Marshal(list); err == nil {
		s.cacheSet(ctx, key, raw, s.cfg.SearchTTL)
	}
	return list, nil
}
