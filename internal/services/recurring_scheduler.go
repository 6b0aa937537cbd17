package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig holds configuration for the recurring scheduler
type SchedulerConfig struct {
	// Interval is how often due occurrences are checked (default: 1h)
	Interval time.Duration

	// RunTimeout bounds a single processing run (default: 5m)
	RunTimeout time.Duration
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   time.Hour,
		RunTimeout: 5 * time.Minute,
	}
}

// RecurringScheduler runs a RecurringProcessor on a fixed interval.
type RecurringScheduler struct {
	processor *RecurringProcessor
	config    SchedulerConfig
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRecurringScheduler(processor *RecurringProcessor, config SchedulerConfig) *RecurringScheduler {
	defaults := DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}
	return &RecurringScheduler{
		processor: processor,
		config:    config,
		now:       time.Now,
	}
}

// Start begins the loop and runs once immediately. Returns an error if already running.
func (s *RecurringScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("recurring scheduler is already running")
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Recurring scheduler started",
		"interval", s.config.Interval,
		"run_timeout", s.config.RunTimeout)

	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (s *RecurringScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Recurring scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *RecurringScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce processes due occurrences a single time.
func (s *RecurringScheduler) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.processor.ProcessDue(runCtx, s.now())
	if err != nil {
		return n, err
	}
	slog.DebugContext(ctx, "Recurring run finished",
		"created", n,
		"duration", time.Since(start))
	return n, nil
}

// runLoop owns the channels it was started with; a later Start replaces the
// fields without touching this loop.
func (s *RecurringScheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *RecurringScheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Recurring run failed", "error", err)
	}
}
