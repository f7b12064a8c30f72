package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/market-gateway/internal/clock"
	"github.com/rickgao/market-gateway/internal/model"
)

// State is a subscription's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateBackoff
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateBackoff:
		return "backoff"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FetchFunc retrieves the current value for a subscription.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is a consistent view of a subscription. Value and LastError are
// reported together so callers can show stale data alongside the failure.
type Snapshot[T any] struct {
	Key       string
	State     State
	Value     T
	HasValue  bool
	LastError error
	UpdatedAt time.Time // Last successful fetch
	ErrorAt   time.Time // Last failed fetch
}

// Subscription polls one subject. It is safe for concurrent use.
type Subscription[T any] struct {
	id     string
	key    string
	cfg    Config
	clk    clock.Clock
	logger *slog.Logger
	equal  func(a, b T) bool
	wg     *sync.WaitGroup

	mu       sync.Mutex
	state    State
	fetch    FetchFunc[T]
	seq      uint64 // last issued fetch
	abort    context.CancelFunc
	timer    clock.Timer // interval or backoff
	timerGen uint64
	debounce clock.Timer
	retries  int // consecutive backoffs

	value     T
	hasValue  bool
	published T // last value observers were notified of
	lastErr   error
	updatedAt time.Time
	errorAt   time.Time

	observers map[int]func(Snapshot[T])
	nextObs   int
}

// ID returns the subscription's unique identifier.
func (s *Subscription[T]) ID() string {
	return s.id
}

// Key returns the subject key.
func (s *Subscription[T]) Key() string {
	return s.key
}

// Start issues the first fetch. Calling Start on a running or cancelled
// subscription has no effect.
func (s *Subscription[T]) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle || s.seq > 0 {
		return
	}
	s.issueLocked()
}

// Refresh requests a fetch after the debounce quiet period. Only the last
// of a burst of calls results in a fetch, and it is coalesced if a fetch
// is already in flight.
func (s *Subscription[T]) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCancelled {
		return
	}
	s.scheduleDebounceLocked()
}

// Retarget replaces the fetch function, abandons any in-flight fetch or
// pending backoff, and schedules a debounced refresh.
func (s *Subscription[T]) Retarget(fetch FetchFunc[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCancelled {
		return
	}

	s.fetch = fetch
	if s.abort != nil {
		s.abort()
		s.abort = nil
	}
	// Any completion still in flight now carries an outdated sequence.
	s.seq++
	s.stopTimerLocked()
	s.retries = 0
	s.state = StateIdle
	s.scheduleDebounceLocked()
}

// Cancel stops the subscription permanently. An in-flight fetch is aborted
// and its result discarded; no timers fire afterwards.
func (s *Subscription[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Observe registers fn to be called whenever the value materially changes.
// The returned function removes the observer.
func (s *Subscription[T]) Observe(fn func(Snapshot[T])) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObs
	s.nextObs++
	if s.observers == nil {
		s.observers = make(map[int]func(Snapshot[T]))
	}
	s.observers[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the subscription's current state.
func (s *Subscription[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Subscription[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Key:       s.key,
		State:     s.state,
		Value:     s.value,
		HasValue:  s.hasValue,
		LastError: s.lastErr,
		UpdatedAt: s.updatedAt,
		ErrorAt:   s.errorAt,
	}
}

// triggerLocked starts a fetch unless one is in flight or a backoff is pending.
func (s *Subscription[T]) triggerLocked() {
	if s.state != StateIdle {
		return
	}
	s.issueLocked()
}

func (s *Subscription[T]) issueLocked() {
	s.stopTimerLocked()

	s.seq++
	seq := s.seq
	fetch := s.fetch
	s.state = StateFetching

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.cfg.FetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	s.abort = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		v, err := fetch(ctx)
		s.complete(seq, v, err)
	}()
}

func (s *Subscription[T]) complete(seq uint64, v T, err error) {
	s.mu.Lock()

	if s.state == StateCancelled || seq != s.seq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale fetch result", "key", s.key, "seq", seq)
		return
	}
	s.abort = nil
	now := s.clk.Now()

	if err != nil {
		s.failLocked(err, now)
		s.mu.Unlock()
		return
	}

	changed := !s.hasValue || !s.equal(s.published, v)
	if changed {
		s.published = v
	}
	s.value = v
	s.hasValue = true
	s.lastErr = nil
	s.updatedAt = now
	s.retries = 0
	s.state = StateIdle
	s.scheduleTimerLocked(s.cfg.Interval)

	if !changed {
		s.mu.Unlock()
		return
	}

	snap := s.snapshotLocked()
	observers := make([]func(Snapshot[T]), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func (s *Subscription[T]) failLocked(err error, now time.Time) {
	s.lastErr = err
	s.errorAt = now

	switch kind := model.KindOf(err); kind {
	case model.KindInvalidArgument:
		s.logger.Error("subscription rejected by gateway, cancelling",
			"key", s.key,
			"id", s.id,
			"err", err,
		)
		s.cancelLocked()

	case model.KindRateLimited, model.KindUpstreamRateLimitExhausted:
		if s.cfg.MaxBackoffRetries > 0 && s.retries >= s.cfg.MaxBackoffRetries {
			s.logger.Warn("backoff retries exhausted, resuming interval",
				"key", s.key,
				"retries", s.retries,
			)
			s.retries = 0
			s.state = StateIdle
			s.scheduleTimerLocked(s.cfg.Interval)
			return
		}
		s.retries++
		if s.cfg.Backoff <= 0 {
			s.issueLocked()
			return
		}
		s.state = StateBackoff
		s.logger.Debug("rate limited, backing off",
			"key", s.key,
			"retry", s.retries,
			"delay", s.cfg.Backoff,
		)
		s.scheduleTimerLocked(s.cfg.Backoff)

	default:
		s.logger.Warn("fetch failed, keeping last value",
			"key", s.key,
			"kind", kind,
			"err", err,
		)
		s.retries = 0
		s.state = StateIdle
		s.scheduleTimerLocked(s.cfg.Interval)
	}
}

func (s *Subscription[T]) cancelLocked() {
	if s.state == StateCancelled {
		return
	}
	s.state = StateCancelled
	if s.abort != nil {
		s.abort()
		s.abort = nil
	}
	s.stopTimerLocked()
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.observers = nil
}

// scheduleTimerLocked arms the interval or backoff timer. A zero delay
// leaves the subscription waiting for an explicit trigger.
func (s *Subscription[T]) scheduleTimerLocked(d time.Duration) {
	s.stopTimerLocked()
	if d <= 0 {
		return
	}

	gen := s.timerGen
	s.timer = s.clk.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if gen != s.timerGen || (s.state != StateIdle && s.state != StateBackoff) {
			return
		}
		s.timer = nil
		s.issueLocked()
	})
}

func (s *Subscription[T]) stopTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Subscription[T]) scheduleDebounceLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.cfg.Debounce <= 0 {
		s.triggerLocked()
		return
	}

	var t clock.Timer
	t = s.clk.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.debounce != t || s.state == StateCancelled {
			return
		}
		s.debounce = nil
		s.triggerLocked()
	})
	s.debounce = t
}
