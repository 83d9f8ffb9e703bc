package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/coachledger-backend/internal/sales"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

type fakeConsumer struct {
	err    error
	called chan struct{}
}

func (f *fakeConsumer) Stats() sales.ConsumerStats { return sales.ConsumerStats{Acked: 3} }

func (f *fakeConsumer) Run(ctx context.Context) error {
	close(f.called)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestServiceRequiresConsumer(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without consumer")
	}
}

func TestServiceStopsOnFailedDependency(t *testing.T) {
	consumer := &fakeConsumer{called: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Consumer: consumer,
		Checks: map[string]func(context.Context) error{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("refused") },
			"pubsub":   func(context.Context) error { return errors.New("permission denied") },
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	err = svc.Run(context.Background())
	if err == nil {
		t.Fatal("expected readiness error")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected both failing dependencies reported, got %d: %v", got, err)
	}
	select {
	case <-consumer.called:
		t.Fatal("consumer must not start when a dependency is down")
	default:
	}
}

func TestServiceSurfacesConsumerError(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Consumer: &fakeConsumer{err: boom, called: make(chan struct{})}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}

func TestServiceStopsOnCancel(t *testing.T) {
	consumer := &fakeConsumer{called: make(chan struct{})}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Consumer: consumer, Heartbeat: time.Millisecond})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-consumer.called
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}
