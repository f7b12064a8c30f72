// Package gateway exposes the aggregation engine over HTTP.
//
// Every request passes the general admission policy; the /api routes also
// pass the hot policy, checked after the general one. Failures are written
// as {"error": ..., "code": ...} with a status derived from the error kind.
package gateway
