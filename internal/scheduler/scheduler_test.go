package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "voucherbot/pkg/logx"
)

func TestSchedulerRunsJob(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Second, func(ctx context.Context) { runs.Add(1) }, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("job never ran")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := New(time.Second, func(ctx context.Context) {}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Stop(context.Background())
	s.Stop(context.Background())
}

func TestApplyBeforeStart(t *testing.T) {
	s := New(time.Hour, func(ctx context.Context) {}, logx.Nop())
	s.Apply(30 * time.Minute)
	if s.interval != 30*time.Minute {
		t.Fatalf("interval %v", s.interval)
	}
	s.Apply(0)
	if s.interval != 30*time.Minute {
		t.Fatal("non-positive interval must be ignored")
	}
}
