package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for the admission engine.
//
// The one collector the engine is contractually required to expose is the
// blocked-decisions counter, incremented on every blocked rate limit
// decision and labeled by action. The rest follow the same register-once,
// record-everywhere shape.
type Metrics struct {
	// blockedDecisions counts blocked rate limit decisions per action.
	blockedDecisions *prometheus.CounterVec

	// checkDuration observes the latency of limit and metering checks.
	checkDuration *prometheus.HistogramVec

	// meteringDecisions counts metering gate outcomes.
	meteringDecisions *prometheus.CounterVec

	// billingDeliveries counts outbound billing collaborator calls by outcome.
	billingDeliveries *prometheus.CounterVec
}

// New creates a Metrics instance registered against reg. A nil reg registers
// against the default Prometheus registerer. Tests pass their own registry
// so instances stay isolated.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		blockedDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themis_blocked_ratelimit_total",
				Help: "Number of times requests were blocked by a rate limit",
			},
			[]string{"action"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "themis_check_duration_seconds",
				Help:    "Duration of admission checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~400ms
			},
			[]string{"operation"},
		),

		meteringDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themis_metering_decisions_total",
				Help: "Metering gate decisions by outcome",
			},
			[]string{"outcome"},
		),

		billingDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themis_billing_deliveries_total",
				Help: "Outbound billing collaborator requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
	}
}

// RecordBlocked records a blocked rate limit decision for an action.
func (m *Metrics) RecordBlocked(action string) {
	m.blockedDecisions.WithLabelValues(action).Inc()
}

// ObserveCheckDuration records the duration of an admission check.
func (m *Metrics) ObserveCheckDuration(operation string, seconds float64) {
	m.checkDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordMeteringDecision records a metering gate outcome
// (charged, already_charged, free_trial, under_threshold).
func (m *Metrics) RecordMeteringDecision(outcome string) {
	m.meteringDecisions.WithLabelValues(outcome).Inc()
}

// RecordBillingDelivery records an outbound billing call outcome
// (success, duplicate, error).
func (m *Metrics) RecordBillingDelivery(endpoint, outcome string) {
	m.billingDeliveries.WithLabelValues(endpoint, outcome).Inc()
}
