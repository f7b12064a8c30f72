// Package model defines shared data types used across the market gateway.
//
// Conventions:
//   - Prices and volumes: decimal.Decimal, rendered as JSON numbers
//   - Symbols: upper-case base asset ("BTC"); pairs join base and quote ("BTCUSDT")
//   - Timestamps: time.Time in UTC
package model
