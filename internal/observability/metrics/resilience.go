package metrics

import "github.com/prometheus/client_golang/prometheus"

// resilienceMetrics implements resilience.Observer for whichever process owns the executor.
type resilienceMetrics struct {
	service     string
	retries     *prometheus.CounterVec
	breakerOpen *prometheus.GaugeVec
}

func newResilienceMetrics(registry *prometheus.Registry, service string) *resilienceMetrics {
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried service calls by operation and reason.",
		},
		[]string{"service", "operation", "reason"},
	)
	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ckb",
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker for an operation is open.",
		},
		[]string{"service", "operation"},
	)
	registry.MustRegister(retries, breakerOpen)
	return &resilienceMetrics{service: service, retries: retries, breakerOpen: breakerOpen}
}

func (m *resilienceMetrics) ObserveRetry(operation, reason string) {
	m.retries.WithLabelValues(m.service, operation, reason).Inc()
}

func (m *resilienceMetrics) ObserveBreakerState(operation string, open bool) {
	value := 0.0
	if open {
		value = 1
	}
	m.breakerOpen.WithLabelValues(m.service, operation).Set(value)
}
