// Package ratelimit implements the Admission Limiter component.
//
// Each (policy, client) pair owns a fixed window: the count resets once a
// full window has elapsed since the window started. Requests near a window
// boundary can therefore be admitted up to twice the limit in a short span.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/market-gateway/internal/clock"
)

// Policy is a named fixed-window limit.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int           // Slots left in the current window, never negative
	ResetAfter time.Duration // Time until the window resets
}

type windowKey struct {
	policy string
	client string
}

type window struct {
	start  time.Time
	length time.Duration
	count  int
}

// Limiter tracks admission windows per client. It is safe for concurrent use.
type Limiter struct {
	clk    clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	windows map[windowKey]*window
	janitor clock.Timer
	every   time.Duration
	closed  bool
}

// New creates a Limiter. A positive janitorInterval starts a background
// task that drops windows which have already ended.
func New(clk clock.Clock, janitorInterval time.Duration, logger *slog.Logger) *Limiter {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Limiter{
		clk:     clk,
		logger:  logger,
		windows: make(map[windowKey]*window),
		every:   janitorInterval,
	}
	l.mu.Lock()
	l.scheduleJanitorLocked()
	l.mu.Unlock()
	return l
}

// Allow reports whether the request is admitted.
func (l *Limiter) Allow(clientKey string, p Policy) bool {
	return l.Take(clientKey, p).Allowed
}

// Take counts one request against the client's window for p.
// The count is incremented even when the request is rejected.
func (l *Limiter) Take(clientKey string, p Policy) Decision {
	now := l.clk.Now()
	key := windowKey{policy: p.Name, client: clientKey}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= p.Window {
		w = &window{start: now, length: p.Window}
		l.windows[key] = w
	}
	w.count++

	remaining := p.Limit - w.count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:    w.count <= p.Limit,
		Limit:      p.Limit,
		Remaining:  remaining,
		ResetAfter: w.start.Add(p.Window).Sub(now),
	}
}

// Reset forgets every window.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.windows = make(map[windowKey]*window)
	l.mu.Unlock()
}

// Len returns the number of tracked windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Close stops the janitor.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.janitor != nil {
		l.janitor.Stop()
		l.janitor = nil
	}
}

func (l *Limiter) scheduleJanitorLocked() {
	if l.every <= 0 || l.closed {
		return
	}
	l.janitor = l.clk.AfterFunc(l.every, l.cleanup)
}

func (l *Limiter) cleanup() {
	now := l.clk.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, w := range l.windows {
		if now.Sub(w.start) >= w.length {
			delete(l.windows, k)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debug("admission windows expired", "removed", removed, "remaining", len(l.windows))
	}
	l.scheduleJanitorLocked()
}
