package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCounter struct {
	now     time.Time
	counts  map[string]int64
	expires map[string]time.Time
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		counts:  map[string]int64{},
		expires: map[string]time.Time{},
	}
}

func (f *fakeCounter) expire(key string) {
	if exp, ok := f.expires[key]; ok && !f.now.Before(exp) {
		delete(f.counts, key)
		delete(f.expires, key)
	}
}

func (f *fakeCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.expire(key)
	f.counts[key]++
	if f.counts[key] == 1 {
		f.expires[key] = f.now.Add(window)
	}
	return f.counts[key], f.expires[key].Sub(f.now), nil
}

func (f *fakeCounter) Claim(_ context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.expire(key)
	if _, ok := f.counts[key]; ok {
		return false, f.expires[key].Sub(f.now), nil
	}
	f.counts[key] = 1
	f.expires[key] = f.now.Add(ttl)
	return true, 0, nil
}

func TestLimiter_Cooldown(t *testing.T) {
	c := newFakeCounter()
	l := New(c, 10*time.Minute, 5, 45*time.Second)
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "p", "login"); !d.Allowed {
		t.Fatal("first request should pass")
	}
	c.now = c.now.Add(10 * time.Second)
	d, _ := l.Allow(ctx, "p", "login")
	if d.Allowed || d.RetryAfter != 35*time.Second {
		t.Fatalf("decision = %+v, want denied with 35s", d)
	}
	if d, _ := l.Allow(ctx, "p", "registration"); !d.Allowed {
		t.Error("other purpose has its own cooldown")
	}
	c.now = c.now.Add(35 * time.Second)
	if d, _ := l.Allow(ctx, "p", "login"); !d.Allowed {
		t.Error("request after cooldown should pass")
	}
}

func TestLimiter_Window(t *testing.T) {
	c := newFakeCounter()
	l := New(c, 10*time.Minute, 3, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if d, _ := l.Allow(ctx, "p", "login"); !d.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
		c.now = c.now.Add(time.Minute)
	}
	d, _ := l.Allow(ctx, "p", "login")
	if d.Allowed || d.RetryAfter != 7*time.Minute {
		t.Fatalf("decision = %+v, want denied with 7m", d)
	}

	c.now = c.now.Add(7 * time.Minute)
	if d, _ := l.Allow(ctx, "p", "login"); !d.Allowed {
		t.Error("new window should allow")
	}
}

func TestLimiter_FailsOpen(t *testing.T) {
	c := newFakeCounter()
	c.err = errors.New("redis down")
	d, err := New(c, time.Minute, 1, time.Second).Allow(context.Background(), "p", "login")
	if err == nil || !d.Allowed {
		t.Errorf("got (%+v, %v), want allowed with error", d, err)
	}
}
