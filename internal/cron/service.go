package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locker   Locker
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval. Each job runs under
// its own lease, so replicas never run the same job concurrently.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locker   Locker
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locker:   params.Locker,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunOnce runs one cycle of every job. A failing or leased job does not stop the others.
func (s *Service) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.registry.Jobs() {
		if err := s.leased(ctx, job); err != nil && !isJobError(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunJob runs a single named job under its lease.
func (s *Service) RunJob(ctx context.Context, name string) error {
	job, ok := s.registry.Find(name)
	if !ok {
		return fmt.Errorf("unknown cron job %q (registered: %s)", name, strings.Join(s.registry.Names(), ", "))
	}
	err := s.leased(ctx, job)
	var jobErr *jobError
	if errors.As(err, &jobErr) {
		return jobErr.err
	}
	return err
}

// jobError separates a job's own failure, already logged and counted, from
// lease failures.
type jobError struct{ err error }

func (e *jobError) Error() string { return e.err.Error() }

func isJobError(err error) bool {
	var jobErr *jobError
	return errors.As(err, &jobErr)
}

func (s *Service) leased(ctx context.Context, job Job) error {
	lease, acquired, err := s.locker.TryLock(ctx, job.Name())
	if err != nil {
		return fmt.Errorf("lock %s: %w", job.Name(), err)
	}
	if !acquired {
		s.logg.Info(s.logg.WithField(ctx, "job", job.Name()), "job leased by another worker; skipping")
		return nil
	}
	defer func() {
		relErr := lease.Release(context.WithoutCancel(ctx))
		switch {
		case errors.Is(relErr, ErrLeaseLost):
			s.logg.Warn(s.logg.WithField(ctx, "job", job.Name()), "job outlived its lease")
		case relErr != nil:
			s.logg.Error(ctx, "failed to release cron lease", relErr)
		}
	}()
	if err := s.runJob(ctx, job); err != nil {
		return &jobError{err: err}
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "cron.job",
	})
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.Observe(job.Name(), duration, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}
