// Package scheduler triggers the periodic stock check.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "voucherbot/pkg/logx"
)

// Job is the work run on every tick. It receives the service's run context;
// overlap protection is the pipeline's job, not the scheduler's.
type Job func(ctx context.Context)

// Service runs one job on a fixed interval via robfig/cron's @every spec.
type Service struct {
	mu sync.Mutex

	log      logx.Logger
	job      Job
	interval time.Duration

	c      *cron.Cron
	runCtx context.Context
}

func New(interval time.Duration, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:      log.With(logx.String("comp", "scheduler")),
		job:      job,
		interval: interval,
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx = ctx
	s.startLocked()
	s.log.Info("scheduler started", logx.Duration("interval", s.interval))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	stopCtx := s.c.Stop()
	s.c = nil

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Apply changes the interval; a running cron is restarted with the new spec.
func (s *Service) Apply(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval == s.interval {
		return
	}
	s.interval = interval
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.startLocked()
	s.log.Info("scheduler interval updated", logx.Duration("interval", interval))
}

func (s *Service) startLocked() {
	// Capture the context by closure: the tick callback must not touch s.mu,
	// Apply waits for running ticks while holding it.
	ctx := s.runCtx
	s.c = cron.New()
	spec := fmt.Sprintf("@every %s", s.interval.String())
	_, _ = s.c.AddFunc(spec, func() {
		if ctx == nil || ctx.Err() != nil {
			return
		}
		s.job(ctx)
	})
	s.c.Start()
}
