package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/coachledger-backend/internal/sales"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

const (
	heartbeatInterval = time.Minute
	readinessTimeout  = 10 * time.Second
)

type consumer interface {
	Run(ctx context.Context) error
	Stats() sales.ConsumerStats
}

type ServiceParams struct {
	Logger    *logger.Logger
	Consumer  consumer
	Checks    map[string]func(context.Context) error
	Heartbeat time.Duration
}

// Service pings every dependency, then runs the sales consumer until ctx ends,
// logging delivery counts on each heartbeat.
type Service struct {
	logg      *logger.Logger
	consumer  consumer
	checks    map[string]func(context.Context) error
	heartbeat time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("sales consumer is required")
	}
	heartbeat := params.Heartbeat
	if heartbeat <= 0 {
		heartbeat = heartbeatInterval
	}
	return &Service{logg: params.Logger, consumer: params.Consumer, checks: params.Checks, heartbeat: heartbeat}, nil
}

// ready pings all dependencies in parallel and reports every failure.
func (s *Service) ready(ctx context.Context) error {
	names := make([]string, 0, len(s.checks))
	for name, check := range s.checks {
		if check != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	failures := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			if err := s.checks[name](ctx); err != nil {
				failures[i] = fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := multierr.Combine(failures...); err != nil {
		s.logg.Error(ctx, "worker dependencies not ready", err)
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "dependencies", names), "worker dependencies ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	done := make(chan error, 1)
	go func() { done <- s.consumer.Run(ctx) }()

	var last sales.ConsumerStats
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "sales consumer stopped unexpectedly", err)
			}
			return err
		case <-ticker.C:
			now := s.consumer.Stats()
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"acked":        now.Acked - last.Acked,
				"nacked":       now.Nacked - last.Nacked,
				"acked_total":  now.Acked,
				"nacked_total": now.Nacked,
			}), "worker heartbeat")
			last = now
		}
	}
}
