package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rickgao/market-gateway/internal/clock"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemory_TTL(t *testing.T) {
	clk := clock.NewFake(t0)
	m := NewMemory(MemoryConfig{}, clk, nil)
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v1"), 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clk.Advance(10*time.Second - time.Nanosecond)
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get just before expiry: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get = %q, want v1", got)
	}

	clk.Advance(time.Nanosecond)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get at expiry = %v, want ErrNotFound", err)
	}
}

func TestMemory_Replace(t *testing.T) {
	clk := clock.NewFake(t0)
	m := NewMemory(MemoryConfig{}, clk, nil)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "k", []byte("old"), time.Second)
	clk.Advance(900 * time.Millisecond)
	m.Set(ctx, "k", []byte("new"), time.Second)
	clk.Advance(900 * time.Millisecond)

	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("Get = %q, want new", got)
	}
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	m := NewMemory(MemoryConfig{}, clock.NewFake(t0), nil)
	defer m.Close()
	ctx := context.Background()

	in := []byte("abc")
	m.Set(ctx, "k", in, time.Minute)
	in[0] = 'X'

	out, _ := m.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("stored value changed through caller slice: %q", out)
	}
	out[1] = 'Y'

	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value changed through returned slice: %q", again)
	}
}

func TestMemory_NonPositiveTTL(t *testing.T) {
	m := NewMemory(MemoryConfig{}, clock.NewFake(t0), nil)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "zero", []byte("v"), 0)
	m.Set(ctx, "neg", []byte("v"), -time.Second)

	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestMemory_DeleteAndClear(t *testing.T) {
	m := NewMemory(MemoryConfig{}, clock.NewFake(t0), nil)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "a", []byte("1"), time.Minute)
	m.Set(ctx, "b", []byte("2"), time.Minute)

	m.Delete(ctx, "a")
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(a) after Delete = %v, want ErrNotFound", err)
	}
	if _, err := m.Get(ctx, "b"); err != nil {
		t.Errorf("Get(b) = %v, want hit", err)
	}

	m.Clear(ctx)
	if m.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", m.Len())
	}
}

func TestMemory_Sweeper(t *testing.T) {
	clk := clock.NewFake(t0)
	m := NewMemory(MemoryConfig{SweepInterval: time.Minute}, clk, nil)
	ctx := context.Background()

	m.Set(ctx, "short", []byte("1"), 30*time.Second)
	m.Set(ctx, "long", []byte("2"), 5*time.Minute)

	clk.Advance(time.Minute)
	if m.Len() != 1 {
		t.Fatalf("Len() after first sweep = %d, want 1", m.Len())
	}

	clk.Advance(5 * time.Minute)
	if m.Len() != 0 {
		t.Errorf("Len() after later sweeps = %d, want 0", m.Len())
	}

	m.Close()
	if clk.Pending() != 0 {
		t.Errorf("Pending() after Close = %d, want 0", clk.Pending())
	}
}

func TestMemory_MaxEntries(t *testing.T) {
	clk := clock.NewFake(t0)
	m := NewMemory(MemoryConfig{MaxEntries: 3}, clk, nil)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "expired", []byte("x"), time.Second)
	clk.Advance(2 * time.Second)

	m.Set(ctx, "a", []byte("a"), 10*time.Minute)
	m.Set(ctx, "b", []byte("b"), time.Minute)
	m.Set(ctx, "c", []byte("c"), 5*time.Minute)

	// Expired entries go first.
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}

	m.Set(ctx, "d", []byte("d"), 7*time.Minute)
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	if _, err := m.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("entry closest to expiry should be evicted, Get(b) = %v", err)
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, err := m.Get(ctx, k); err != nil {
			t.Errorf("Get(%s) = %v, want hit", k, err)
		}
	}
}

func TestMemory_MaxEntriesKeepsNewEntry(t *testing.T) {
	clk := clock.NewFake(t0)
	m := NewMemory(MemoryConfig{MaxEntries: 2}, clk, nil)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "history:BTC", []byte("h1"), 5*time.Minute)
	m.Set(ctx, "history:ETH", []byte("h2"), 5*time.Minute)

	// Expires before every other entry but must still be stored.
	m.Set(ctx, "image:BTC", []byte("img"), time.Minute)

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	got, err := m.Get(ctx, "image:BTC")
	if err != nil || string(got) != "img" {
		t.Errorf("Get(image:BTC) = %q, %v, want the value just stored", got, err)
	}

	// Replacing an existing key never evicts.
	m.Set(ctx, "image:BTC", []byte("img2"), time.Second)
	if m.Len() != 2 {
		t.Errorf("Len() after replace = %d, want 2", m.Len())
	}
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory(MemoryConfig{MaxEntries: 50}, clock.Real(), nil)
	defer m.Close()
	ctx := context.Background()

	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (w*200+i)%80)
				m.Set(ctx, key, []byte(key), time.Minute)
				if v, err := m.Get(ctx, key); err == nil && string(v) != key {
					t.Errorf("Get(%s) = %q", key, v)
				}
			}
		}(w)
	}
	for w := 0; w < 8; w++ {
		<-done
	}

	if m.Len() > 50 {
		t.Errorf("Len() = %d, want <= 50", m.Len())
	}
}
