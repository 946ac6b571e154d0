package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amparena_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amparena_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	PurchaseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amparena_purchase_outcomes_total",
			Help: "Purchase confirmations by final state and outcome",
		},
		[]string{"state", "outcome"},
	)

	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "amparena_tickets_issued_total",
			Help: "Tickets persisted as confirmed",
		},
	)

	CodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "amparena_ticket_code_collisions_total",
			Help: "Generated ticket codes rejected by the ledger as duplicates",
		},
	)

	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amparena_mail_deliveries_total",
			Help: "Outbound mail attempts by tag and outcome",
		},
		[]string{"tag", "outcome"},
	)

	RenderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amparena_render_failures_total",
			Help: "Ticket artifact rendering failures by artifact",
		},
		[]string{"artifact"},
	)

	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amparena_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter by scope",
		},
		[]string{"scope"},
	)
)
