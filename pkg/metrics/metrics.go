package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records admin authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_auth_attempts_total",
			Help: "Total number of admin authentication attempts",
		},
		[]string{"result"},
	)

	// NewsletterEmails counts individual newsletter deliveries by result (sent|failed|bounced).
	NewsletterEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_newsletter_emails_total",
			Help: "Total number of newsletter emails by delivery result",
		},
		[]string{"result"},
	)

	// SubscriberEvents counts subscriber lifecycle events (subscribed|resubscribed|unsubscribed|bounced).
	SubscriberEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_subscriber_events_total",
			Help: "Total number of subscriber lifecycle events",
		},
		[]string{"event"},
	)

	// ActiveSessions tracks admin sessions that are neither expired nor revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftline_active_sessions",
			Help: "Number of active admin sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftline_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
