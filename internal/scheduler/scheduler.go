// Package scheduler runs the registered periodic jobs. Each job has a name,
// an interval, and a handler; a distributed lock keyed by the job name keeps
// runs of the same job from overlapping across workers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"authwatch/internal/metrics"
)

// Job is a named periodic task. Handler failures are observable (logged,
// counted) but never stop the schedule.
type Job struct {
	Name     string
	Interval time.Duration
	Handler  func(ctx context.Context) error
}

type Scheduler struct {
	jobs    []Job
	locker  Locker
	lockTTL time.Duration
	metrics metrics.Recorder
	logger  *zap.Logger
}

func New(locker Locker, lockTTL time.Duration, m metrics.Recorder, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		locker:  locker,
		lockTTL: lockTTL,
		metrics: m,
		logger:  logger,
	}
}

// Register adds a job to the registry. Must be called before Start.
func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start runs every registered job on its own ticker until ctx is canceled.
// Each job also fires once at startup.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup

	for _, job := range s.jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLoop(ctx, job)
		}()
	}

	wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	s.logger.Info("job scheduled",
		zap.String("job", job.Name),
		zap.Duration("interval", job.Interval),
	)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, job)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("job loop stopped", zap.String("job", job.Name))
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	acquired, release, err := s.locker.Acquire(ctx, job.Name, s.lockTTL)
	if err != nil {
		s.logger.Error("failed to acquire job lock",
			zap.Error(err),
			zap.String("job", job.Name),
		)
		s.metrics.RecordRun(job.Name, err)
		return
	}
	if !acquired {
		s.logger.Debug("job already running elsewhere, skipping",
			zap.String("job", job.Name),
		)
		return
	}
	defer release()

	start := time.Now()
	err = job.Handler(ctx)
	s.metrics.RecordRun(job.Name, err)
	s.metrics.RecordRunDuration(job.Name, time.Since(start))

	if err != nil {
		s.logger.Error("job run failed",
			zap.Error(err),
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}

	s.logger.Info("job run completed",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)),
	)
}
