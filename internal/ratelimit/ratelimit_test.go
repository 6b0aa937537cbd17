package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *clock) {
	t.Helper()
	l := NewLimiter(Config{PerMinute: perMinute})
	t.Cleanup(l.Stop)
	c := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	l.now = c.Now
	return l, c
}

func TestLimiter_Reserve(t *testing.T) {
	l, c := newTestLimiter(t, 2)

	steps := []struct {
		name    string
		advance time.Duration
		key     string
		want    bool
	}{
		{"first", 0, "a", true},
		{"second", time.Second, "a", true},
		{"over limit", time.Second, "a", false},
		{"other key", 0, "b", true},
		{"still inside window", 50 * time.Second, "a", false},
		{"window reset", 10 * time.Second, "a", true},
	}
	for _, s := range steps {
		c.Advance(s.advance)
		if got, _ := l.reserve(s.key); got != s.want {
			t.Errorf("%s: reserve(%q) = %v, want %v", s.name, s.key, got, s.want)
		}
	}

	m := l.GetMetrics()
	if m.TotalHits != 2 || m.ActiveKeys != 2 {
		t.Errorf("GetMetrics() = %+v, want 2 hits and 2 keys", m)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l, c := newTestLimiter(t, 1)
	l.reserve("old")
	c.Advance(3 * time.Minute)
	l.reserve("fresh")

	l.cleanupStaleEntries()
	if got := l.GetMetrics().ActiveKeys; got != 1 {
		t.Errorf("ActiveKeys = %d, want 1", got)
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	if err := l.Wait(context.Background(), "k"); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(Config{})
	defer l.Stop()
	if l.perMinute != 60 || l.cleanupInterval != 5*time.Minute {
		t.Errorf("defaults = %d, %v", l.perMinute, l.cleanupInterval)
	}
}
