package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Total number of webhook requests received (count)",
		},
		[]string{"carrier", "status"},
	)

	WebhookProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_ms",
			Help:    "End-to-end webhook processing duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"carrier", "outcome"},
	)

	AuthenticationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authentication_failures_total",
			Help: "Total number of webhook requests rejected by signature validation (count)",
		},
		[]string{"carrier", "scheme"},
	)

	DuplicateDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duplicate_deliveries_total",
			Help: "Total number of carrier redeliveries suppressed by the idempotency key (count)",
		},
		[]string{"carrier"},
	)

	FragmentsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragments_received_total",
			Help: "Total number of message fragments received (count)",
		},
		[]string{"carrier", "status"},
	)

	FragmentSetsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragment_sets_expired_total",
			Help: "Total number of fragment sets discarded incomplete after TTL (count)",
		},
		[]string{"carrier"},
	)

	WorkflowStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_steps_total",
			Help: "Total number of workflow step executions by outcome (count)",
		},
		[]string{"step", "status"},
	)

	WorkflowStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workflow_step_duration_ms",
			Help:    "Policy evaluator call duration per workflow step in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"step"},
	)

	WabaForwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_forwards_total",
			Help: "Total number of payloads forwarded to an alternate environment (count)",
		},
		[]string{"status"},
	)

	QueuePublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publishes_total",
			Help: "Total number of canonical messages published to the queue (count)",
		},
		[]string{"topic", "status"},
	)

	QueuePublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_publish_duration_ms",
			Help:    "Queue publish duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"topic"},
	)

	PublishRetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_retry_attempts_total",
			Help: "Total number of queue publish retry attempts (count)",
		},
		[]string{"topic"},
	)

	RoutingUnresolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_unresolved_total",
			Help: "Total number of messages with no resolvable channel group (count)",
		},
		[]string{"carrier"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	PreRoutingRulesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prerouting_rules_active",
			Help: "Number of active pre-routing fallback rules (count)",
		},
	)

	DiagnosticEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnostic_events_total",
			Help: "Total number of diagnostic events recorded (count)",
		},
		[]string{"type", "carrier"},
	)
)

func RegisterIngestionMetrics() {
	prometheus.MustRegister(WebhookRequestsTotal)
	prometheus.MustRegister(WebhookProcessingDuration)
	prometheus.MustRegister(AuthenticationFailuresTotal)
	prometheus.MustRegister(DuplicateDeliveriesTotal)
	prometheus.MustRegister(FragmentsReceivedTotal)
	prometheus.MustRegister(FragmentSetsExpiredTotal)
	prometheus.MustRegister(WorkflowStepsTotal)
	prometheus.MustRegister(WorkflowStepDuration)
	prometheus.MustRegister(WabaForwardsTotal)
	prometheus.MustRegister(RoutingUnresolvedTotal)
	prometheus.MustRegister(PreRoutingRulesActive)
	prometheus.MustRegister(DiagnosticEventsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(QueuePublishesTotal)
	prometheus.MustRegister(QueuePublishDuration)
	prometheus.MustRegister(PublishRetryAttemptsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAdminMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveWebhookDuration(carrier, outcome string, duration time.Duration) {
	WebhookProcessingDuration.WithLabelValues(carrier, outcome).Observe(float64(duration.Milliseconds()))
}

func ObserveWorkflowStepDuration(step string, duration time.Duration) {
	WorkflowStepDuration.WithLabelValues(step).Observe(float64(duration.Milliseconds()))
}

func ObserveQueuePublishDuration(topic string, duration time.Duration) {
	QueuePublishDuration.WithLabelValues(topic).Observe(float64(duration.Milliseconds()))
}
