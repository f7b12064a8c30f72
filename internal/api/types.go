package api

// APITicker is one entry of GET /api/v3/ticker/24hr.
type APITicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// ExchangeInfoResponse from GET /api/v3/exchangeInfo
type ExchangeInfoResponse struct {
	Symbols []APISymbol `json:"symbols"`
}

// APISymbol is one tradeable pair from exchange info.
type APISymbol struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
}

// KlinesRequest configures a GET /api/v3/klines request.
type KlinesRequest struct {
	Symbol    string // Pair symbol, e.g. "BTCUSDT"
	Interval  string // e.g. "5m"
	StartTime int64  // ms since epoch, 0 = unset
	EndTime   int64  // ms since epoch, 0 = unset
	Limit     int    // 0 = upstream default
}

// SearchResponse from GET /search (metadata API)
type SearchResponse struct {
	Coins *[]APICoin `json:"coins"`
}

// APICoin is one search candidate from the metadata API.
type APICoin struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Thumb  string `json:"thumb"`
	Large  string `json:"large"`
}

// errorBody is the JSON error envelope the gateway returns.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
