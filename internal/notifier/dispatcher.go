// Package notifier fans a stock notification out to subscribed recipients.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/time/rate"

	"voucherbot/internal/metrics"
	"voucherbot/internal/tracker"
	logx "voucherbot/pkg/logx"
)

// trailer is appended to every notification so recipients know tracking
// stopped and how to re-enable it.
const trailer = "\n\n_Tracking paused. Use /track to re-enable._"

// Sender delivers one message to one recipient. Implemented by the Telegram
// adapter.
type Sender interface {
	SendText(ctx context.Context, recipientID string, text string) error
}

type Config struct {
	RatePerSec int
	RetryMax   int
}

// Dispatcher sends the stock-appearance message to every candidate recipient
// exactly once per event.
//
// Each recipient is handled independently: a failed send is logged and
// skipped, a successful one is marked notified before being counted. The
// notified flag is persisted, so a repeated dispatch (or a restart) never
// re-sends to the same recipient until they re-subscribe.
type Dispatcher struct {
	store  *tracker.Store
	sender Sender
	log    logx.Logger

	mu       sync.Mutex
	limiter  *rate.Limiter
	retryMax int
}

func New(cfg Config, store *tracker.Store, sender Sender, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{
		store:  store,
		sender: sender,
		log:    log.With(logx.String("comp", "notifier.dispatcher")),
	}
	d.Apply(cfg)
	return d
}

// Apply updates the rate limit and retry budget. Safe during hot reload.
func (d *Dispatcher) Apply(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	d.mu.Lock()
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	d.retryMax = cfg.RetryMax
	d.mu.Unlock()
}

// Dispatch sends message (plus the tracking-paused trailer) to every
// recipient with notified=false and returns how many were notified.
func (d *Dispatcher) Dispatch(ctx context.Context, message string) (int, error) {
	candidates, err := d.store.Candidates(ctx)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	d.mu.Lock()
	limiter := d.limiter
	retryMax := d.retryMax
	d.mu.Unlock()

	text := message + trailer
	notified := 0

	for _, id := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			return notified, err
		}

		err := retry.Do(
			func() error { return d.sender.SendText(ctx, id, text) },
			retry.Attempts(uint(retryMax)),
			retry.Delay(500*time.Millisecond),
			retry.MaxDelay(5*time.Second),
			retry.MaxJitter(time.Second),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				d.log.Debug("retrying notification send", logx.String("recipient", id), logx.Any("attempt", n), logx.Err(err))
			}),
		)
		if err != nil {
			// One recipient's failure must not abort dispatch to the rest.
			d.log.Warn("failed to notify recipient", logx.String("recipient", id), logx.Err(err))
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			continue
		}

		if err := d.store.MarkNotified(ctx, id); err != nil {
			d.log.Error("sent but failed to mark notified", logx.String("recipient", id), logx.Err(err))
		}
		notified++
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		d.log.Info("recipient notified", logx.String("recipient", id))
	}

	return notified, nil
}
