// Package scheduler runs the order lifecycle core's background sweeps:
// cart cleanup, checkout expiry, order auto-confirm, payment
// reconciliation, and abandoned-cart reminders. Each sweep is a Job
// polled on its own interval; the Scheduler just owns the tickers and
// keeps one run of a given job from overlapping the next.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/metrics"
)

// Job is one named background sweep. Run should be idempotent —
// the Scheduler makes no guarantee a previous run fully drained its
// work before the next tick fires, only that the same job never runs
// concurrently with itself.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler ticks each registered Job on its own interval until the
// context is cancelled.
type Scheduler struct {
	jobs []Job
	log  zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
}

func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		log:     log.With().Str("component", "scheduler").Logger(),
		running: make(map[string]bool),
	}
}

// Register adds a job. Call before Start; jobs added afterward are
// ignored.
func (s *Scheduler) Register(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start launches one ticker goroutine per registered job and blocks
// until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.runLoop(ctx, j)
		}(j)
	}
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
	wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, j)
		}
	}
}

// tick runs j.Run once, skipping the tick entirely if the previous run
// of this same job hasn't finished yet.
func (s *Scheduler) tick(ctx context.Context, j Job) {
	s.mu.Lock()
	if s.running[j.Name] {
		s.mu.Unlock()
		s.log.Warn().Str("job", j.Name).Msg("previous run still in flight, skipping tick")
		return
	}
	s.running[j.Name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[j.Name] = false
		s.mu.Unlock()
	}()

	start := time.Now()
	err := j.Run(ctx)
	elapsed := time.Since(start)
	metrics.SchedulerJobDuration.WithLabelValues(j.Name).Observe(elapsed.Seconds())

	if err != nil {
		metrics.SchedulerJobRuns.WithLabelValues(j.Name, "error").Inc()
		s.log.Error().Err(err).Str("job", j.Name).Dur("elapsed", elapsed).Msg("job run failed")
		return
	}
	metrics.SchedulerJobRuns.WithLabelValues(j.Name, "ok").Inc()
	s.log.Debug().Str("job", j.Name).Dur("elapsed", elapsed).Msg("job run completed")
}
