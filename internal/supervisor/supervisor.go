// Package supervisor periodically re-acquires capture sources that are not live.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default timings.
const (
	DefaultPeriod = time.Second
	DefaultRetry  = 2 * time.Second
)

// Target is a channel the supervisor can start.
type Target interface {
	Name() string
	Eligible(now time.Time, retry time.Duration) bool
	Start(ctx context.Context) error
}

// Options configures a Supervisor.
type Options struct {
	Period time.Duration    // tick period, DefaultPeriod when zero
	Retry  time.Duration    // minimum spacing between attempts, DefaultRetry when zero
	Clock  func() time.Time // time source passed to Eligible, time.Now when nil
	Logger *slog.Logger
}

// Supervisor ticks on a fixed period and starts every eligible target.
type Supervisor struct {
	targets []Target
	period  time.Duration
	retry   time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu       sync.Mutex
	inflight []bool // indexed like targets
	wg       sync.WaitGroup
}

// New creates a supervisor for targets.
func New(targets []Target, opts Options) *Supervisor {
	s := &Supervisor{
		targets:  targets,
		period:   opts.Period,
		retry:    opts.Retry,
		now:      opts.Clock,
		logger:   opts.Logger,
		inflight: make([]bool, len(targets)),
	}
	if s.period <= 0 {
		s.period = DefaultPeriod
	}
	if s.retry <= 0 {
		s.retry = DefaultRetry
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Tick checks every target once and starts the eligible ones in the
// background. A target whose previous start has not returned is skipped.
// It returns the number of start attempts launched.
func (s *Supervisor) Tick(ctx context.Context) int {
	now := s.now()

	attempts := 0
	for i, t := range s.targets {
		s.mu.Lock()
		busy := s.inflight[i]
		s.mu.Unlock()
		if busy {
			s.logger.Debug("Start still in progress", "channel", t.Name())
			continue
		}
		if !t.Eligible(now, s.retry) {
			continue
		}

		s.mu.Lock()
		s.inflight[i] = true
		s.mu.Unlock()
		attempts++
		s.wg.Add(1)
		go func(i int, t Target) {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				s.inflight[i] = false
				s.mu.Unlock()
			}()
			if err := t.Start(ctx); err != nil {
				s.logger.Debug("Start attempt failed", "channel", t.Name(), "error", err)
			}
		}(i, t)
	}
	return attempts
}

// Wait blocks until every start launched by Tick has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Run ticks immediately and then every period until ctx is cancelled.
// It returns once the starts it launched have returned.
func (s *Supervisor) Run(ctx context.Context) {
	s.logger.Info("Supervisor started", "period", s.period, "retry", s.retry, "channels", len(s.targets))
	defer s.logger.Info("Supervisor stopped")
	defer s.Wait()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
