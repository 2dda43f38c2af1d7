// Package scheduler runs the recurring background jobs and records an
// audit row for every run.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

// Job is one recurring unit of background work. Run returns the number
// of items it processed.
type Job interface {
	Type() entities.JobType
	Run(ctx context.Context) (int, error)
}

// Scheduler drives jobs on fixed intervals. Ticks never overlap: a tick
// that outlives its interval delays the next one rather than running
// concurrently with it.
type Scheduler struct {
	jobs repositories.JobExecutionRepository
	log  zerolog.Logger
}

// New creates a scheduler writing audit rows to jobs
func New(jobs repositories.JobExecutionRepository, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		jobs: jobs,
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// RunLoop ticks job every interval until ctx is cancelled. Each tick
// gets at most budget of wall time. An immediate first tick runs before
// the ticker starts.
func (s *Scheduler) RunLoop(ctx context.Context, job Job, interval, budget time.Duration) {
	s.log.Info().
		Str("job", string(job.Type())).
		Dur("interval", interval).
		Dur("budget", budget).
		Msg("job loop starting")

	s.runOnce(ctx, job, budget)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Str("job", string(job.Type())).Msg("job loop stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx, job, budget)
		}
	}
}

// runOnce executes one tick under the budget, bracketing it with a
// Running audit row and its Completed or Failed closure.
func (s *Scheduler) runOnce(ctx context.Context, job Job, budget time.Duration) {
	execution := entities.StartJob(job.Type())
	if err := s.jobs.Append(ctx, execution); err != nil {
		s.log.Error().Err(err).Str("job", string(job.Type())).Msg("could not open audit row, skipping tick")
		return
	}

	tickCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	processed, err := job.Run(tickCtx)
	if err != nil {
		execution.Fail(err, processed)
		s.log.Error().Err(err).
			Str("job", string(job.Type())).
			Int("items", processed).
			Msg("job tick failed")
	} else {
		execution.Complete(processed)
		s.log.Debug().
			Str("job", string(job.Type())).
			Int("items", processed).
			Msg("job tick completed")
	}

	if err := s.jobs.Close(ctx, execution); err != nil {
		s.log.Error().Err(err).Str("job", string(job.Type())).Msg("could not close audit row")
	}
}
