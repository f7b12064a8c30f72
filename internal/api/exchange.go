package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/market-gateway/internal/model"
)

const exchangePrefix = "/api/v3"

// Exchange reads market data from a Binance-compatible REST API.
type Exchange struct {
	client *Client
}

// NewExchange wraps a client pointed at the exchange base URL.
func NewExchange(client *Client) *Exchange {
	return &Exchange{client: client}
}

// Ticker24h fetches 24h statistics for every pair, in upstream order.
func (e *Exchange) Ticker24h(ctx context.Context) ([]model.TickerRecord, error) {
	path := exchangePrefix + "/ticker/24hr"

	var resp []APITicker
	if err := e.client.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get ticker: %w", err)
	}

	records := make([]model.TickerRecord, 0, len(resp))
	for _, t := range resp {
		rec, err := t.ToModel()
		if err != nil {
			return nil, model.NewError(model.KindUpstreamFailed, "GET "+path, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// ExchangeInfo fetches pair metadata.
func (e *Exchange) ExchangeInfo(ctx context.Context) ([]model.InstrumentInfo, error) {
	path := exchangePrefix + "/exchangeInfo"

	var resp ExchangeInfoResponse
	if err := e.client.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get exchange info: %w", err)
	}
	if resp.Symbols == nil {
		return nil, model.NewError(model.KindUpstreamFailed, "GET "+path, errors.New("exchange info: missing symbols"))
	}

	infos := make([]model.InstrumentInfo, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		info, err := s.ToModel()
		if err != nil {
			return nil, model.NewError(model.KindUpstreamFailed, "GET "+path, err)
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// Klines fetches OHLCV bars ordered by open time.
func (e *Exchange) Klines(ctx context.Context, req KlinesRequest) ([]model.Candle, error) {
	path := exchangePrefix + "/klines"

	query := url.Values{}
	query.Set("symbol", req.Symbol)
	query.Set("interval", req.Interval)
	if req.StartTime > 0 {
		query.Set("startTime", strconv.FormatInt(req.StartTime, 10))
	}
	if req.EndTime > 0 {
		query.Set("endTime", strconv.FormatInt(req.EndTime, 10))
	}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}

	var rows [][]json.RawMessage
	if err := e.client.getJSON(ctx, path, query, &rows); err != nil {
		return nil, fmt.Errorf("get klines %s: %w", req.Symbol, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := ParseKline(row)
		if err != nil {
			return nil, model.NewError(model.KindUpstreamFailed, "GET "+path, err)
		}
		candles = append(candles, c)
	}

	return candles, nil
}

// Ping checks the exchange is reachable.
func (e *Exchange) Ping(ctx context.Context) error {
	if _, err := e.client.Fetch(ctx, exchangePrefix+"/ping", nil); err != nil {
		return fmt.Errorf("ping exchange: %w", err)
	}
	return nil
}
