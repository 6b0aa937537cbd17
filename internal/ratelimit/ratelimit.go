// Package ratelimit bounds how often a keyed operation may run per minute.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter is a fixed one-minute window limiter keyed by an arbitrary string,
// e.g. a spreadsheet ID.
type Limiter struct {
	mu           sync.Mutex
	keys         map[string]*window
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time
	totalHits    atomic.Int64

	perMinute       int
	cleanupInterval time.Duration
}

type window struct {
	start time.Time
	count int
}

// Config holds rate limiter configuration
type Config struct {
	PerMinute       int
	CleanupInterval time.Duration
}

// DefaultConfig matches the per-user write quota of the Sheets API.
func DefaultConfig() Config {
	return Config{
		PerMinute:       60,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup loop. Call Stop to
// release it.
func NewLimiter(config Config) *Limiter {
	if config.PerMinute <= 0 {
		config.PerMinute = DefaultConfig().PerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	l := &Limiter{
		keys:            make(map[string]*window),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		perMinute:       config.PerMinute,
		cleanupInterval: config.CleanupInterval,
	}
	go l.startCleanup()
	return l
}

// Wait blocks until an operation for key is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		ok, retryIn := l.reserve(key)
		if ok {
			return nil
		}
		timer := time.NewTimer(retryIn)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve counts an operation when allowed, otherwise returns how long until
// the window of key resets.
func (l *Limiter) reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.keys[key]
	if !exists || now.Sub(w.start) >= time.Minute {
		l.keys[key] = &window{start: now, count: 1}
		return true, 0
	}
	if w.count < l.perMinute {
		w.count++
		return true, 0
	}
	l.totalHits.Add(1)
	return false, time.Minute - now.Sub(w.start)
}

func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops windows that ended more than a minute ago.
func (l *Limiter) cleanupStaleEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * time.Minute)
	for key, w := range l.keys {
		if w.start.Before(cutoff) {
			delete(l.keys, key)
		}
	}
}

// Stop ends the cleanup loop.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}

// Metrics for monitoring rate limit pressure. TotalHits counts the calls
// that found their window full.
type Metrics struct {
	TotalHits  int64
	ActiveKeys int64
}

func (l *Limiter) GetMetrics() Metrics {
	l.mu.Lock()
	active := int64(len(l.keys))
	l.mu.Unlock()

	return Metrics{
		TotalHits:  l.totalHits.Load(),
		ActiveKeys: active,
	}
}
