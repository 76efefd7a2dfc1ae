package cron

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/kiosko-backend/pkg/logger"
	"github.com/angelmondragon/kiosko-backend/pkg/metrics"
)

// LockFactory builds the single-flight lock for one job. Locks are keyed per
// job so a slow job never blocks the others across instances.
type LockFactory func(jobName string) (Lock, error)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
}

// Service runs every registered job on its own ticker until the context is
// canceled. Each run is guarded by the job's Redis lock, so concurrent worker
// instances race for the lock and exactly one executes.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
	}, nil
}

// Run starts one loop per registered job and blocks until the context ends.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	jobs := s.registry.Jobs()
	if len(jobs) == 0 {
		s.logg.Warn(ctx, "cron service started with no jobs registered")
		<-ctx.Done()
		return ctx.Err()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		lock, err := s.locks(job.Name())
		if err != nil {
			return fmt.Errorf("build lock for %s: %w", job.Name(), err)
		}
		group.Go(func() error {
			return s.runLoop(groupCtx, job, lock)
		})
	}
	return group.Wait()
}

func (s *Service) runLoop(ctx context.Context, job Job, lock Lock) error {
	interval := job.Interval()
	if interval <= 0 {
		return fmt.Errorf("job %s has no interval", job.Name())
	}

	s.runOnce(ctx, job, lock)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(s.logg.WithField(ctx, "job", job.Name()), "cron loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, job, lock)
		}
	}
}

func (s *Service) runOnce(ctx context.Context, job Job, lock Lock) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")

	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "lock acquire failed", err)
		return
	}
	if !locked {
		s.logg.Info(jobCtx, "another instance holds the lock; skipping")
		return
	}
	defer func() {
		if relErr := lock.Release(jobCtx); relErr != nil {
			s.logg.Error(jobCtx, "lock release failed", relErr)
		}
	}()

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err = s.execute(jobCtx, job)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.recordFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(job.Name())
}

// execute isolates a panicking job so one bad batch cannot take the whole
// worker down.
func (s *Service) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}
