// Package scheduler runs periodic background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Locker guarantees a job runs on one instance at a time. ok is false when
// another instance holds the lock.
type Locker interface {
	TryLock(ctx context.Context, name string) (release func(), ok bool, err error)
}

type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	logger  zerolog.Logger
	timeout time.Duration
}

func New(locker Locker, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		locker:  locker,
		logger:  logger,
		timeout: 10 * time.Minute,
	}
}

// Add registers job under name on a standard five-field cron spec.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("register job %s (%q): %w", name, spec, err)
	}
	s.logger.Info().Str("job", name).Str("spec", spec).Msg("job registered")
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, name)
		if err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("acquire job lock")
			return
		}
		if !ok {
			s.logger.Debug().Str("job", name).Msg("job running elsewhere, skipping")
			return
		}
		defer release()
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	s.logger.Info().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timed out with jobs still running")
	}
}
