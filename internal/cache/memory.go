package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/market-gateway/internal/clock"
)

// MemoryConfig holds in-process cache settings.
type MemoryConfig struct {
	SweepInterval time.Duration // 0 disables the background sweeper
	MaxEntries    int           // 0 = unbounded
}

// entry is visible while now < storedAt+ttl.
type entry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expiresAt() time.Time {
	return e.storedAt.Add(e.ttl)
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	cfg    MemoryConfig
	clk    clock.Clock
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]entry

	sweepMu sync.Mutex
	sweeper clock.Timer
	closed  bool
}

// NewMemory creates a Memory store and starts its sweeper.
func NewMemory(cfg MemoryConfig, clk clock.Clock, logger *slog.Logger) *Memory {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Memory{
		cfg:     cfg,
		clk:     clk,
		logger:  logger,
		entries: make(map[string]entry),
	}
	m.scheduleSweep()
	return m
}

// Get returns a copy of the stored value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	now := m.clk.Now()

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !now.Before(e.expiresAt()) {
		return nil, ErrNotFound
	}
	return clone(e.value), nil
}

// Set replaces the entry for key.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	now := m.clk.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: clone(value), storedAt: now, ttl: ttl}

	if m.cfg.MaxEntries > 0 && len(m.entries) > m.cfg.MaxEntries {
		m.sweepLocked(now)
		for len(m.entries) > m.cfg.MaxEntries {
			if !m.evictSoonestLocked(key) {
				break
			}
		}
	}
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.clk.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(now)
}

// Close stops the sweeper.
func (m *Memory) Close() error {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	m.closed = true
	if m.sweeper != nil {
		m.sweeper.Stop()
		m.sweeper = nil
	}
	return nil
}

func (m *Memory) scheduleSweep() {
	if m.cfg.SweepInterval <= 0 {
		return
	}

	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	if m.closed {
		return
	}
	m.sweeper = m.clk.AfterFunc(m.cfg.SweepInterval, func() {
		if n := m.Sweep(); n > 0 {
			m.logger.Debug("cache sweep", "removed", n)
		}
		m.scheduleSweep()
	})
}

func (m *Memory) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt()) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// evictSoonestLocked drops the entry closest to expiry other than keep,
// so a Set never evicts the value it just stored.
func (m *Memory) evictSoonestLocked(keep string) bool {
	var (
		victim  string
		soonest time.Time
		found   bool
	)
	for k, e := range m.entries {
		if k == keep {
			continue
		}
		if exp := e.expiresAt(); !found || exp.Before(soonest) {
			victim, soonest, found = k, exp, true
		}
	}
	if found {
		delete(m.entries, victim)
	}
	return found
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
