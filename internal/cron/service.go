package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/metrics"
)

const defaultInterval = time.Minute

// processLocal is implemented by jobs whose work only touches this process.
// They take a LocalLock instead of the shared one.
type processLocal interface {
	ProcessLocal() bool
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.JobMetrics
}

// Service runs every registered job on its own ticker. A job runs once at
// start, then every Interval, and never overlaps with itself.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.JobMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.locks == nil {
		s.locks = LocalLocks()
	}
	return s, nil
}

// Run blocks until ctx is canceled and returns its error.
func (s *Service) Run(ctx context.Context) error {
	jobs := s.registry.Jobs()
	locks := make([]Lock, len(jobs))
	for i, job := range jobs {
		if local, ok := job.(processLocal); ok && local.ProcessLocal() {
			locks[i] = &LocalLock{}
			continue
		}
		lock, err := s.locks(job.Name())
		if err != nil {
			return fmt.Errorf("lock for job %s: %w", job.Name(), err)
		}
		locks[i] = lock
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		group.Go(func() error { return s.loop(groupCtx, job, locks[i]) })
	}
	err := group.Wait()
	s.logg.Info(ctx, "scheduler stopped")
	return err
}

func (s *Service) loop(ctx context.Context, job Job, lock Lock) error {
	every := job.Interval()
	if every <= 0 {
		every = defaultInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		s.runLocked(ctx, job, lock)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runLocked runs job once if its lock is free.
func (s *Service) runLocked(ctx context.Context, job Job, lock Lock) {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "lock acquire failed", err)
		return
	}
	if !acquired {
		s.logg.Debug(ctx, "job already running elsewhere; skipping this tick")
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release job lock", err)
		}
	}()

	start := time.Now()
	err = s.safeRun(ctx, job)
	elapsed := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), elapsed)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(job.Name())
		s.logg.Error(ctx, "job failed", err)
		return
	}
	s.metrics.IncSuccess(job.Name())
	s.logg.Debug(ctx, "job completed")
}

// safeRun keeps a panicking job from taking the scheduler down.
func (s *Service) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), rec)
		}
	}()
	return job.Run(ctx)
}
