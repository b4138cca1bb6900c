package scheduler

import (
	"context"
	"testing"

	"jobscout/internal/config"
)

func TestSchedulerRestart(t *testing.T) {
	cfg := &config.SchedulerConfig{IntervalMinutes: 60}
	noop := func(ctx context.Context) error { return nil }
	sched := NewScheduler(cfg, noop)

	if err := sched.Start(); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Fatalf("scheduler should be running after Start")
	}
	if sched.GetNextRun().IsZero() {
		t.Fatalf("next run should be scheduled")
	}
	if err := sched.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if sched.IsRunning() {
		t.Fatalf("scheduler should not be running after Stop")
	}
	if !sched.GetNextRun().IsZero() {
		t.Fatalf("stopped scheduler should report no next run")
	}
}

func TestSchedulerDoubleStart(t *testing.T) {
	cfg := &config.SchedulerConfig{IntervalMinutes: 60}
	sched := NewScheduler(cfg, func(ctx context.Context) error { return nil })

	if err := sched.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer sched.Stop()

	if err := sched.Start(); err == nil {
		t.Fatalf("second Start should fail while running")
	}
}
