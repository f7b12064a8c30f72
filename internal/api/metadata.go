package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rickgao/market-gateway/internal/model"
)

// MetadataKeyHeader carries the metadata API key.
const MetadataKeyHeader = "x-cg-demo-api-key"

// ErrImageNotFound is returned when no search candidate matches a symbol.
var ErrImageNotFound = errors.New("no image for symbol")

// Metadata reads coin metadata from a CoinGecko-compatible API.
type Metadata struct {
	client *Client
}

// NewMetadata wraps a client pointed at the metadata base URL.
func NewMetadata(client *Client) *Metadata {
	return &Metadata{client: client}
}

// Search returns the candidates the metadata API lists for query.
func (m *Metadata) Search(ctx context.Context, query string) ([]APICoin, error) {
	q := url.Values{}
	q.Set("query", query)

	var resp SearchResponse
	if err := m.client.getJSON(ctx, "/search", q, &resp); err != nil {
		return nil, fmt.Errorf("search %s: %w", query, err)
	}
	if resp.Coins == nil {
		return nil, model.NewError(model.KindUpstreamFailed, "GET /search", errors.New("search: missing coins"))
	}

	return *resp.Coins, nil
}

// ImageFor returns the large image URL of the first candidate whose symbol
// equals symbol, ignoring case.
func (m *Metadata) ImageFor(ctx context.Context, symbol string) (string, error) {
	coins, err := m.Search(ctx, symbol)
	if err != nil {
		return "", err
	}

	for _, c := range coins {
		if strings.EqualFold(c.Symbol, symbol) {
			if c.Large == "" {
				break
			}
			return c.Large, nil
		}
	}

	return "", fmt.Errorf("%s: %w", symbol, ErrImageNotFound)
}
