package poller

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/market-gateway/internal/clock"
)

// Config holds Polling Coordinator configuration.
type Config struct {
	Interval          time.Duration // Poll interval after a success or failure (default: 5s)
	Debounce          time.Duration // Quiet period for Refresh (default: 500ms)
	Backoff           time.Duration // Delay after rate limiting (default: 1s)
	MaxBackoffRetries int           // Consecutive backoffs before resuming the interval, 0 = unbounded
	FetchTimeout      time.Duration // Per-fetch timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     5 * time.Second,
		Debounce:     500 * time.Millisecond,
		Backoff:      time.Second,
		FetchTimeout: 10 * time.Second,
	}
}

// Key builds a subject key from a symbol and what it is polled for.
func Key(symbol, purpose string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "/" + purpose
}

// Coordinator owns one subscription per subject key.
type Coordinator[T any] struct {
	cfg    Config
	equal  func(a, b T) bool
	clk    clock.Clock
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]*Subscription[T]
	closed bool

	// Tracks fetch goroutines so Close can wait for them.
	wg sync.WaitGroup
}

// New creates a Coordinator. equal decides whether a new value materially
// differs from the last published one; nil means reflect.DeepEqual.
func New[T any](cfg Config, equal func(a, b T) bool, clk clock.Clock, logger *slog.Logger) *Coordinator[T] {
	if equal == nil {
		equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator[T]{
		cfg:    cfg,
		equal:  equal,
		clk:    clk,
		logger: logger,
		subs:   make(map[string]*Subscription[T]),
	}
}

// Subscribe returns the live subscription for key, creating it with fetch
// if there is none. New subscriptions are idle until Start is called.
func (c *Coordinator[T]) Subscribe(key string, fetch FetchFunc[T]) *Subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub, ok := c.subs[key]; ok && sub.Snapshot().State != StateCancelled {
		return sub
	}

	sub := &Subscription[T]{
		id:     uuid.NewString(),
		key:    key,
		cfg:    c.cfg,
		clk:    c.clk,
		logger: c.logger,
		equal:  c.equal,
		wg:     &c.wg,
		fetch:  fetch,
	}
	if c.closed {
		sub.state = StateCancelled
		return sub
	}
	c.subs[key] = sub

	c.logger.Debug("subscription created", "key", key, "id", sub.id)
	return sub
}

// Get returns the subscription for key, if any.
func (c *Coordinator[T]) Get(key string) (*Subscription[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[key]
	return sub, ok
}

// Unsubscribe cancels and forgets the subscription for key.
func (c *Coordinator[T]) Unsubscribe(key string) {
	c.mu.Lock()
	sub, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if ok {
		sub.Cancel()
	}
}

// Len returns the number of tracked subscriptions.
func (c *Coordinator[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close cancels every subscription and waits for in-flight fetches to return.
func (c *Coordinator[T]) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	subs := c.subs
	c.subs = make(map[string]*Subscription[T])
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("polling coordinator stopped", "subscriptions", len(subs))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
