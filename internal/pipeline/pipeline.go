// Package pipeline runs the check-and-notify sequence with mutual exclusion.
package pipeline

import (
	"context"
	"sync"

	"voucherbot/internal/metrics"
	"voucherbot/internal/monitor"
	logx "voucherbot/pkg/logx"
)

// ReasonSkippedOverlap marks a run that was skipped because another one was
// still in flight.
const ReasonSkippedOverlap = "skipped_overlap"

// Result is the JSON envelope returned by the trigger endpoint.
type Result struct {
	Checked        bool   `json:"checked"`
	StockAvailable bool   `json:"stock_available"`
	StockChanged   bool   `json:"stock_changed"`
	UsersNotified  int    `json:"users_notified"`
	Reason         string `json:"reason"`
}

type Detector interface {
	Detect(ctx context.Context) monitor.ChangeEvent
}

type Dispatcher interface {
	Dispatch(ctx context.Context, message string) (int, error)
}

// Pipeline serializes detect -> dispatch. Both the cron tick and the HTTP
// trigger route through Run; a concurrent invocation is skipped rather than
// queued, so candidates can never be read twice for the same event.
type Pipeline struct {
	mu         sync.Mutex
	detector   Detector
	dispatcher Dispatcher
	log        logx.Logger
}

func New(detector Detector, dispatcher Dispatcher, log logx.Logger) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{
		detector:   detector,
		dispatcher: dispatcher,
		log:        log.With(logx.String("comp", "pipeline")),
	}
}

// Run executes one check-and-notify pass. It returns an error only for
// unexpected failures (store I/O); fetch problems degrade to a normal result
// with reason api_error.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if !p.mu.TryLock() {
		p.log.Debug("check already in progress, skipping")
		metrics.ChecksTotal.WithLabelValues(ReasonSkippedOverlap).Inc()
		return Result{Checked: false, Reason: ReasonSkippedOverlap}, nil
	}
	defer p.mu.Unlock()

	ev := p.detector.Detect(ctx)
	res := Result{
		Checked:        true,
		StockAvailable: ev.Status.Available,
		StockChanged:   ev.Changed,
		Reason:         ev.Reason,
	}
	metrics.ChecksTotal.WithLabelValues(ev.Reason).Inc()

	if !ev.Changed {
		p.log.Info("no stock change", logx.String("reason", ev.Reason))
		return res, nil
	}

	metrics.StockTransitionsTotal.Inc()
	n, err := p.dispatcher.Dispatch(ctx, ev.Status.Message)
	res.UsersNotified = n
	if err != nil {
		return res, err
	}
	p.log.Info("stock change dispatched", logx.Int("users_notified", n))
	return res, nil
}
