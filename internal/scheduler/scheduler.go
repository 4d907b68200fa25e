// Package scheduler runs the coordinator periodically for the serve command
// and serialises ad-hoc runs triggered through the API.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tradelens/ingestor/internal/runner"
)

// ErrRunInProgress is returned by Trigger while another run is executing
var ErrRunInProgress = errors.New("a run is already in progress")

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks -source=scheduler.go Runner

// Runner executes coordinator runs
type Runner interface {
	Run(ctx context.Context, selected []string) (*runner.RunSummary, error)
	DryRun(ctx context.Context, selected []string) (*runner.RunSummary, error)
}

// SummaryHandler receives every finished run
type SummaryHandler func(ctx context.Context, summary *runner.RunSummary)

// Scheduler triggers a run on start and then once per interval, with jitter.
// At most one run executes at a time.
type Scheduler struct {
	runner    Runner
	interval  time.Duration
	jitter    time.Duration
	onSummary SummaryHandler

	running atomic.Bool
	last    atomic.Pointer[runner.RunSummary]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option is a function that configures the scheduler
type Option func(*Scheduler)

// WithInterval sets the time between scheduled runs
func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = interval
	}
}

// WithJitter sets the maximum random offset applied to each interval
func WithJitter(jitter time.Duration) Option {
	return func(s *Scheduler) {
		s.jitter = jitter
	}
}

// WithSummaryHandler sets a function called after every run, scheduled or triggered
func WithSummaryHandler(fn SummaryHandler) Option {
	return func(s *Scheduler) {
		s.onSummary = fn
	}
}

// New creates a scheduler for r
func New(r Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:   r,
		interval: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nextInterval returns the interval with a random offset in [-jitter, +jitter]
func (s *Scheduler) nextInterval() time.Duration {
	if s.jitter <= 0 {
		return s.interval
	}
	//nolint:gosec // G404: non-cryptographic randomness is sufficient for jitter
	offset := time.Duration(rand.Int64N(int64(2*s.jitter)+1)) - s.jitter
	return max(s.interval+offset, time.Second)
}

// Start runs the coordinator immediately and then on every tick. It blocks
// until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	schedCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	defer func() {
		cancel()
		close(done)
		slog.Info("Scheduler stopped")
	}()

	slog.Info("Starting scheduler", "interval", s.interval, "jitter", s.jitter)

	s.runScheduled(schedCtx)

	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.runScheduled(schedCtx)
			timer.Reset(s.nextInterval())
		case <-schedCtx.Done():
			return nil
		}
	}
}

// Stop cancels the loop started by Start and waits for it to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	slog.Info("Stopping scheduler")
	cancel()
	<-done
	return nil
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	_, err := s.Trigger(ctx, nil, false)
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.InfoContext(ctx, "Skipping scheduled run, a run is already in progress")
	case err != nil:
		slog.ErrorContext(ctx, "Scheduled run failed to start", "error", err)
	}
}

// Trigger runs the named tasks, or all of them when names is empty, unless a
// run is already executing. Configuration errors from the coordinator are
// returned unchanged.
func (s *Scheduler) Trigger(ctx context.Context, names []string, dryRun bool) (*runner.RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	var (
		summary *runner.RunSummary
		err     error
	)
	if dryRun {
		summary, err = s.runner.DryRun(ctx, names)
	} else {
		summary, err = s.runner.Run(ctx, names)
	}
	if err != nil {
		return nil, err
	}

	if !dryRun {
		s.last.Store(summary)
	}
	if s.onSummary != nil {
		s.onSummary(ctx, summary)
	}
	return summary, nil
}

// LastSummary returns the summary of the most recent real run, or nil
func (s *Scheduler) LastSummary() *runner.RunSummary {
	return s.last.Load()
}

// Running reports whether a run is executing
func (s *Scheduler) Running() bool {
	return s.running.Load()
}
