// Package monitor decides when a stock-appearance event fires.
package monitor

import (
	"context"
	"sync"
	"time"

	"voucherbot/internal/inventory"
	logx "voucherbot/pkg/logx"
)

// Reason explains a ChangeEvent outcome.
const (
	ReasonAPIError      = "api_error"
	ReasonStockAppeared = "stock_appeared"
	ReasonNoChange      = "no_change"
)

// ChangeEvent is the result of one detection pass. It is derived, never stored.
type ChangeEvent struct {
	Changed bool
	Status  inventory.Snapshot
	Reason  string
}

// Source fetches the raw inventory payload.
type Source interface {
	Fetch(ctx context.Context) (inventory.Payload, error)
}

// Detector tracks the previous availability state and flags the transition
// from unavailable to available.
//
// The previous state is process-lifetime only; after a restart the first
// successful check may fire immediately if stock happens to be available.
// That is accepted behavior, not a bug.
type Detector struct {
	src  Source
	eval *inventory.Evaluator
	log  logx.Logger

	mu        sync.Mutex
	prevKnown bool
	prevAvail bool
	lastCheck time.Time
}

func NewDetector(src Source, eval *inventory.Evaluator, log logx.Logger) *Detector {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Detector{
		src:  src,
		eval: eval,
		log:  log.With(logx.String("comp", "monitor.detector")),
	}
}

// Detect fetches and evaluates the current inventory, compares it against the
// previous availability and updates that state.
//
// An API error never updates the previous state: a failed fetch must not be
// mistaken for "went out of stock".
func (d *Detector) Detect(ctx context.Context) ChangeEvent {
	snap := d.check(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastCheck = snap.CheckedAt

	if snap.Err {
		return ChangeEvent{Changed: false, Status: snap, Reason: ReasonAPIError}
	}

	// Unset previous state counts as "was not available".
	appeared := snap.Available && !(d.prevKnown && d.prevAvail)

	d.prevKnown = true
	d.prevAvail = snap.Available

	reason := ReasonNoChange
	if appeared {
		reason = ReasonStockAppeared
		d.log.Info("stock appeared", logx.Int("denominations", len(snap.Denominations)))
	}
	return ChangeEvent{Changed: appeared, Status: snap, Reason: reason}
}

// CheckNow runs the read-only on-demand path. It fetches and evaluates but
// never touches the previous-availability state, so a manual check can
// neither mask nor falsely trigger the automatic transition.
func (d *Detector) CheckNow(ctx context.Context) inventory.Snapshot {
	snap := d.check(ctx)
	d.mu.Lock()
	d.lastCheck = snap.CheckedAt
	d.mu.Unlock()
	return snap
}

// LastCheck returns the time of the most recent check (scheduled or manual)
// and whether any check has run yet.
func (d *Detector) LastCheck() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCheck, !d.lastCheck.IsZero()
}

// Reset clears the detection state.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.prevKnown = false
	d.prevAvail = false
	d.lastCheck = time.Time{}
	d.mu.Unlock()
}

func (d *Detector) check(ctx context.Context) inventory.Snapshot {
	p, err := d.src.Fetch(ctx)
	if err != nil {
		d.log.Warn("inventory fetch failed", logx.Err(err))
		return d.eval.ErrorSnapshot()
	}
	return d.eval.Evaluate(p)
}
