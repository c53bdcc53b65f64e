// Package scheduler runs the server's periodic background jobs, such as the
// low-stock inventory scan and the purge of expired session revocations.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Job is one unit of periodic work. The context is cancelled on Stop.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron   *gocron.Scheduler
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   gocron.NewScheduler(time.Local),
		logger: logger.With().Str("component", "scheduler").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every registers job to run immediately on Start and then every interval.
// A run is skipped while the previous one is still going.
func (s *Scheduler) Every(interval time.Duration, name string, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", name, interval)
	}
	_, err := s.cron.Every(interval).Tag(name).SingletonMode().Do(func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("job failed")
		return
	}
	s.logger.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("job completed")
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return s.cron.Len()
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info().Int("jobs", s.cron.Len()).Msg("scheduler started")
}

// Stop cancels running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}
