package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/market-gateway/internal/model"
)

// Gateway is a client for the gateway's own HTTP surface, used by
// consumers such as the polling coordinator.
type Gateway struct {
	client *Client
}

// NewGateway wraps a client pointed at a running gateway.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

// TopVolume fetches the n highest-volume coins.
func (g *Gateway) TopVolume(ctx context.Context, n int) ([]model.RankedCoin, error) {
	query := url.Values{}
	if n > 0 {
		query.Set("n", strconv.Itoa(n))
	}

	var coins []model.RankedCoin
	if err := g.get(ctx, "/api/top-10-volume", query, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// Prices fetches current quotes for the given base symbols.
func (g *Gateway) Prices(ctx context.Context, symbols ...string) ([]model.PriceQuote, error) {
	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))

	var quotes []model.PriceQuote
	if err := g.get(ctx, "/api/coins/prices", query, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// History fetches today's close-price series for symbol.
func (g *Gateway) History(ctx context.Context, symbol string) ([]model.HistoryPoint, error) {
	query := url.Values{}
	query.Set("symbol", symbol)

	var resp struct {
		History []model.HistoryPoint `json:"history"`
	}
	if err := g.get(ctx, "/api/coin/history", query, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// Candlesticks fetches OHLCV bars for symbol between start and end.
func (g *Gateway) Candlesticks(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("start", start.UTC().Format(time.RFC3339))
	query.Set("end", end.UTC().Format(time.RFC3339))
	query.Set("interval", interval)

	var resp struct {
		Candlestick []model.Candle `json:"candlestick"`
	}
	if err := g.get(ctx, "/api/coin/candlestick", query, &resp); err != nil {
		return nil, err
	}
	return resp.Candlestick, nil
}

// get maps gateway rejections of the request itself to KindInvalidArgument;
// 429 and 5xx keep the classification the client gave them.
func (g *Gateway) get(ctx context.Context, path string, query url.Values, result any) error {
	err := g.client.getJSON(ctx, path, query, result)
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest {
		msg := statusErr.Message
		var body errorBody
		if json.Unmarshal(statusErr.Body, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return model.NewError(model.KindInvalidArgument, "GET "+path, errors.New(msg))
	}

	return fmt.Errorf("gateway %s: %w", path, err)
}
