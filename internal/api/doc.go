// Package api provides resilient HTTP clients for the upstreams the gateway
// consumes and for the gateway itself.
//
// Upstreams:
//   - Exchange (Binance-compatible): /api/v3/ticker/24hr, /api/v3/exchangeInfo, /api/v3/klines
//   - Metadata (CoinGecko-compatible): /search?query=<symbol>
//
// Every call is bounded by a timeout. HTTP 429 is retried up to a configured
// number of total attempts; everything else fails immediately. Failures are
// classified as *model.Error so callers can tell timeouts, exhausted rate
// limits and other upstream failures apart.
package api
