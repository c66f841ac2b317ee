// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal counts completed check pipelines by outcome reason
	// (stock_appeared, no_change, api_error, skipped_overlap).
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucherbot_checks_total",
		Help: "Completed stock checks by outcome reason.",
	}, []string{"reason"})

	FetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucherbot_fetch_errors_total",
		Help: "Inventory fetch failures.",
	})

	StockTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucherbot_stock_transitions_total",
		Help: "Detected out-of-stock to in-stock transitions.",
	})

	// NotificationsTotal counts per-recipient send attempts by result
	// (sent, failed).
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucherbot_notifications_total",
		Help: "Per-recipient notification attempts by result.",
	}, []string{"result"})
)
