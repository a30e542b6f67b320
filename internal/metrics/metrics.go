package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Total number of billing webhook events handled, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	WebhookEventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_failed_total",
			Help: "Total number of billing webhook events that failed and will be redelivered",
		},
		[]string{"kind"},
	)

	WebhookRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_rejected_total",
			Help: "Total number of webhook deliveries rejected before processing",
		},
		[]string{"reason"},
	)

	WebhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "billing_webhook_duration_seconds",
			Help: "Duration of billing event handling in seconds",
		},
		[]string{"kind"},
	)

	TickersTrimmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "favorite_tickers_trimmed_total",
			Help: "Total number of favorite tickers removed by tier downgrades",
		},
	)
)
