// Package scheduler implements the Scheduler contract (C11): invoke engines
// on a fixed interval, prevent a job from overlapping with itself, allow an
// optional startup kick-off, and propagate cancellation to running jobs on
// shutdown. Grounded on the ticker-loop idiom of
// internal/llm/token_cache.go's cleanupLoop, generalized from one hardcoded
// interval to a registry of named jobs.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is one schedulable unit: an engine pass or purge pass invoked every
// Interval, never run concurrently with its own previous invocation.
type Job struct {
	Name     string
	Interval time.Duration
	// RunAtStartup runs the job once immediately when the scheduler starts,
	// before its first tick. Default off, matching hosted-environment
	// defaults (§4.11).
	RunAtStartup bool
	Func         func(ctx context.Context) error
}

type scheduledJob struct {
	job     Job
	running atomic.Bool
}

// Scheduler runs a fixed registry of Jobs, each on its own ticker, in its
// configured timezone.
type Scheduler struct {
	loc  *time.Location
	jobs []*scheduledJob
	wg   sync.WaitGroup
}

// New constructs a Scheduler in the named timezone ("" or "UTC" for UTC).
func New(timezone string) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, err
		}
		loc = l
	}
	return &Scheduler{loc: loc}, nil
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, &scheduledJob{job: job})
}

// Start launches one goroutine per registered job. It returns immediately;
// call Wait to block until ctx is cancelled and every job goroutine exits.
func (s *Scheduler) Start(ctx context.Context) {
	for _, sj := range s.jobs {
		sj := sj
		s.wg.Add(1)
		go s.runLoop(ctx, sj)
	}
}

// Wait blocks until every job goroutine has returned (i.e. until ctx is
// cancelled and in-flight invocations finish).
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, sj *scheduledJob) {
	defer s.wg.Done()

	if sj.job.RunAtStartup {
		s.invoke(ctx, sj)
	}

	ticker := time.NewTicker(sj.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.invoke(ctx, sj)
		}
	}
}

// invoke runs the job unless a previous invocation is still running, in
// which case the tick is skipped and logged (§4.11 "do not overlap with
// self").
func (s *Scheduler) invoke(ctx context.Context, sj *scheduledJob) {
	if !sj.running.CompareAndSwap(false, true) {
		log.Warn().Str("job", sj.job.Name).Msg("scheduler: skipping tick, previous run still in progress")
		return
	}
	defer sj.running.Store(false)

	now := time.Now().In(s.loc)
	if err := sj.job.Func(ctx); err != nil {
		log.Error().Err(err).Str("job", sj.job.Name).Time("tickTime", now).Msg("scheduler: job run failed")
	}
}
