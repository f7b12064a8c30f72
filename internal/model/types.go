package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Responses carry prices as JSON numbers, as the exchange-facing
	// clients of this gateway expect.
	decimal.MarshalJSONWithoutQuotes = true
}

// -----------------------------------------------------------------------------
// Upstream Types
// -----------------------------------------------------------------------------

// TickerRecord is a 24h rolling statistics snapshot for one trading pair.
// Records are full replacements; fields are never merged across snapshots.
type TickerRecord struct {
	Symbol             string          // Pair symbol (e.g., "BTCUSDT")
	LastPrice          decimal.Decimal // Last traded price
	HighPrice          decimal.Decimal // 24h high
	LowPrice           decimal.Decimal // 24h low
	Volume             decimal.Decimal // 24h base asset volume
	PriceChangePercent decimal.Decimal // 24h change in percent
}

// InstrumentInfo is static pair metadata from the exchange.
type InstrumentInfo struct {
	PairSymbol string // e.g., "BTCUSDT"
	BaseAsset  string // e.g., "BTC"
	QuoteAsset string // e.g., "USDT"
}

// -----------------------------------------------------------------------------
// Derived Types
// -----------------------------------------------------------------------------

// RankedCoin is a ticker record enriched with metadata and its volume rank.
type RankedCoin struct {
	Rank         int             `json:"rank"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Image        *string         `json:"image"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	High24h      decimal.Decimal `json:"high_24h"`
	Low24h       decimal.Decimal `json:"low_24h"`
	TotalVolume  decimal.Decimal `json:"total_volume"`
}

// PriceQuote is the current price of one base symbol.
type PriceQuote struct {
	Symbol           string          `json:"symbol"`
	Price            decimal.Decimal `json:"price"`
	PercentChange24h decimal.Decimal `json:"percent_change_24h"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// HistoryPoint is one close price in an intraday series.
type HistoryPoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// SearchResult is a tradeable coin matching a search query.
type SearchResult struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Pair   string  `json:"pair"`
	Image  *string `json:"image"`
}

var klineIntervals = map[string]bool{
	"1s": true, "1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1M": true,
}

// ValidInterval reports whether interval is a kline interval the exchange accepts.
func ValidInterval(interval string) bool {
	return klineIntervals[interval]
}
