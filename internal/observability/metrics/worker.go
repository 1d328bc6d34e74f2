package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

type WorkerMetrics struct {
	*resilienceMetrics

	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	segments        *prometheus.HistogramVec
	chunksTotal     *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	service         string
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ckb",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ckb",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ckb",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document creation and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	segments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ckb",
			Subsystem: "pipeline",
			Name:      "segments",
			Help:      "Segments produced per processed document.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	chunksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "pipeline",
			Name:      "chunks_total",
			Help:      "Enhancement chunks by priority tier and outcome.",
		},
		[]string{"service", "tier", "status"},
	)
	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "pipeline",
			Name:      "enhancer_tokens_total",
			Help:      "Tokens consumed by enhancer calls per priority tier.",
		},
		[]string{"service", "tier"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, segments, chunksTotal, tokensTotal)

	return &WorkerMetrics{
		resilienceMetrics: newResilienceMetrics(registry, service),
		registry:          registry,
		processTotal:      processTotal,
		processDuration:   processDuration,
		processInFlight:   processInFlight,
		queueLag:          queueLag,
		segments:          segments,
		chunksTotal:       chunksTotal,
		tokensTotal:       tokensTotal,
		service:           service,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// ObserveSegments and ObserveChunk implement ports.PipelineObserver.
func (m *WorkerMetrics) ObserveSegments(count int) {
	m.segments.WithLabelValues(m.service).Observe(float64(count))
}

func (m *WorkerMetrics) ObserveChunk(tier domain.PriorityTier, degraded bool, tokens int) {
	status := "enhanced"
	if degraded {
		status = "degraded"
	}
	m.chunksTotal.WithLabelValues(m.service, string(tier), status).Inc()
	if tokens > 0 {
		m.tokensTotal.WithLabelValues(m.service, string(tier)).Add(float64(tokens))
	}
}
