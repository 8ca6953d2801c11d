package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// backend bundles a Store with a way to move its clock forward.
type backend struct {
	store   Store
	advance func(time.Duration)
}

func backends(t *testing.T) map[string]backend {
	t.Helper()
	clock := &fakeClock{t: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)}
	mem := newMemory(0, clock.Now)
	t.Cleanup(func() { mem.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]backend{
		"memory": {store: mem, advance: clock.Advance},
		"redis":  {store: NewRedis(client, "test:"), advance: mr.FastForward},
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.store.Set(ctx, "k", []byte("v1"), time.Minute); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := b.store.Get(ctx, "k")
			if err != nil || string(got) != "v1" {
				t.Fatalf("get = %q, %v", got, err)
			}

			if err := b.store.Set(ctx, "k", []byte("v2"), time.Minute); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _ = b.store.Get(ctx, "k")
			if string(got) != "v2" {
				t.Fatalf("expected overwrite, got %q", got)
			}

			if err := b.store.Delete(ctx, "k"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := b.store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			if err := b.store.Delete(ctx, "missing"); err != nil {
				t.Fatalf("deleting a missing key should succeed: %v", err)
			}
		})
	}
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.store.Set(ctx, "short", []byte("x"), 2*time.Second); err != nil {
				t.Fatalf("set: %v", err)
			}
			b.advance(time.Second)
			if _, err := b.store.Get(ctx, "short"); err != nil {
				t.Fatalf("entry expired early: %v", err)
			}
			b.advance(2 * time.Second)
			if _, err := b.store.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected expiry, got %v", err)
			}
		})
	}
}

func TestMemory_LazyDeleteAndSweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := newMemory(0, clock.Now)
	defer m.Close()

	_ = m.Set(ctx, "a", []byte("1"), time.Second)
	_ = m.Set(ctx, "b", []byte("2"), time.Second)
	_ = m.Set(ctx, "c", []byte("3"), time.Hour)
	clock.Advance(2 * time.Second)

	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a expired, got %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected lazy delete of a, len = %d", m.Len())
	}
	m.sweep()
	if m.Len() != 1 {
		t.Fatalf("expected sweep to leave only c, len = %d", m.Len())
	}
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	defer m.Close()

	in := []byte("abc")
	_ = m.Set(ctx, "k", in, time.Minute)
	in[0] = 'z'
	out, _ := m.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("stored value aliased caller slice: %q", out)
	}
	out[1] = 'z'
	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned value aliased stored slice: %q", again)
	}
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	m := NewMemory(time.Millisecond)
	m.Close()
	m.Close()
}

func TestRedis_PrefixAndErrors(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	r := NewRedis(client, "offers:")

	if err := r.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("offers:k") {
		t.Fatal("expected prefixed key in redis")
	}

	mr.Close()
	if _, err := r.Get(ctx, "k"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := OpenRedis(context.Background(), mr.Addr(), "")
	if err != nil {
		t.Fatalf("open bare addr: %v", err)
	}
	r.Close()

	r, err = OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0", "")
	if err != nil {
		t.Fatalf("open url: %v", err)
	}
	r.Close()
}
