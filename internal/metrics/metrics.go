package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_webhooks_received_total",
		Help: "Webhook deliveries by verification result.",
	}, []string{"result"})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_events_processed_total",
		Help: "Webhook events processed by category and outcome.",
	}, []string{"category", "outcome"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_deliveries_total",
		Help: "Push deliveries by channel and status.",
	}, []string{"channel", "status"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notify_dispatch_duration_seconds",
		Help:    "Time spent fanning out one notification.",
		Buckets: prometheus.DefBuckets,
	})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_registrations_total",
		Help: "Destination registrations by kind.",
	}, []string{"kind"})

	BackgroundTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_background_tasks_total",
		Help: "Detached background tasks by name and result.",
	}, []string{"task", "result"})
)
