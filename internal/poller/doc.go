// Package poller implements the Polling Coordinator component.
//
// The Polling Coordinator:
//   - Keeps one subscription per (symbol, purpose) key
//   - Allows at most one in-flight fetch per subscription; triggers coalesce
//   - Debounces bursts of refresh requests to a single trailing fetch
//   - Backs off on rate limiting and keeps the last good value on failure
//   - Discards completions that are stale or arrive after cancellation
//
// Subscriptions are driven by a clock.Clock so schedules can be tested by
// advancing a fake clock.
package poller
