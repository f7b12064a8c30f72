package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/market-gateway/internal/model"
)

// ToModel converts a ticker entry, failing on missing required fields.
// HighPrice, LowPrice and PriceChangePercent default to zero when absent.
func (t APITicker) ToModel() (model.TickerRecord, error) {
	if t.Symbol == "" {
		return model.TickerRecord{}, fmt.Errorf("ticker: missing symbol")
	}

	last, err := requireDecimal(t.Symbol, "lastPrice", t.LastPrice)
	if err != nil {
		return model.TickerRecord{}, err
	}
	volume, err := requireDecimal(t.Symbol, "volume", t.Volume)
	if err != nil {
		return model.TickerRecord{}, err
	}
	high, err := optionalDecimal(t.Symbol, "highPrice", t.HighPrice)
	if err != nil {
		return model.TickerRecord{}, err
	}
	low, err := optionalDecimal(t.Symbol, "lowPrice", t.LowPrice)
	if err != nil {
		return model.TickerRecord{}, err
	}
	change, err := optionalDecimal(t.Symbol, "priceChangePercent", t.PriceChangePercent)
	if err != nil {
		return model.TickerRecord{}, err
	}

	return model.TickerRecord{
		Symbol:             t.Symbol,
		LastPrice:          last,
		HighPrice:          high,
		LowPrice:           low,
		Volume:             volume,
		PriceChangePercent: change,
	}, nil
}

// ToModel converts an exchange-info symbol, failing on missing fields.
func (s APISymbol) ToModel() (model.InstrumentInfo, error) {
	if s.Symbol == "" || s.BaseAsset == "" || s.QuoteAsset == "" {
		return model.InstrumentInfo{}, fmt.Errorf("exchange info: incomplete symbol %q (base %q, quote %q)",
			s.Symbol, s.BaseAsset, s.QuoteAsset)
	}
	return model.InstrumentInfo{
		PairSymbol: s.Symbol,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
	}, nil
}

// ParseKline converts one kline row:
// [openTime, open, high, low, close, volume, closeTime, ...].
func ParseKline(row []json.RawMessage) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("kline: want at least 6 columns, got %d", len(row))
	}

	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return model.Candle{}, fmt.Errorf("kline: open time: %w", err)
	}

	var fields [5]decimal.Decimal
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := range fields {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return model.Candle{}, fmt.Errorf("kline %d: %s: %w", openTime, names[i], err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return model.Candle{}, fmt.Errorf("kline %d: %s: %w", openTime, names[i], err)
		}
		fields[i] = d
	}

	return model.Candle{
		Time:   MillisToTime(openTime),
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

// MillisToTime converts epoch milliseconds to a UTC time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimeToMillis converts a time to epoch milliseconds as a query value.
func TimeToMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func requireDecimal(symbol, field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Decimal{}, fmt.Errorf("ticker %s: missing %s", symbol, field)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("ticker %s: %s: %w", symbol, field, err)
	}
	return d, nil
}

func optionalDecimal(symbol, field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return requireDecimal(symbol, field, value)
}
