package cron

import (
	"context"
	"reflect"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrder(t *testing.T) {
	jobA := &stubJob{name: "monthly-payouts"}
	jobB := &stubJob{name: "payout-reconcile"}
	registry, err := NewRegistry(jobA, jobB)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order: %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
	if got := registry.Names(); !reflect.DeepEqual(got, []string{"monthly-payouts", "payout-reconcile"}) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestRegistryRejectsBadJobs(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "payout-reconcile"}, &stubJob{name: "payout-reconcile"}); err == nil {
		t.Fatal("expected duplicate name error")
	}

	var registry Registry
	if err := registry.Register(nil); err == nil {
		t.Fatal("expected nil job error")
	}
	if err := registry.Register(&stubJob{name: "  "}); err == nil {
		t.Fatal("expected blank name error")
	}
	if err := registry.Register(&stubJob{name: "ledger-export"}); err != nil {
		t.Fatalf("zero registry should accept jobs: %v", err)
	}
	if _, ok := registry.Find("ledger-export"); !ok {
		t.Fatal("expected registered job")
	}
	if _, ok := registry.Find("missing"); ok {
		t.Fatal("unexpected job found")
	}
}
