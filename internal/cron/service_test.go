package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	denied   bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.denied {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	failing := &testJob{name: "fail", err: errors.New("boom")}
	trailing := &testJob{name: "after"}
	registry := NewRegistry(&testJob{name: "first"}, failing, trailing)
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if failing.runs != 1 {
		t.Fatalf("expected failing job to run once, got %d", failing.runs)
	}
	if trailing.runs != 1 {
		t.Fatalf("expected trailing job to run despite earlier failure, got %d", trailing.runs)
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Lock:     &fakeLock{denied: true},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job skipped while lock held, got %d runs", job.runs)
	}
}

func TestRegistrySkipsNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &testJob{name: "only"}, nil)
	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 registered job, got %d", got)
	}
}
