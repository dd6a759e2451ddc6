package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

const statusIndexed = "indexed"

type WorkerMetrics struct {
	registry *prometheus.Registry

	indexTotal    *prometheus.CounterVec
	indexDuration *prometheus.HistogramVec
	indexInFlight prometheus.Gauge
	queueLag      prometheus.Histogram
	deadLetters   prometheus.Counter

	*RetrievalMetrics
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := newRegistry()
	factory := promauto.With(registry)
	serviceLabel := prometheus.Labels{"service": service}

	return &WorkerMetrics{
		registry: registry,
		indexTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "notice_index_total",
			Help:        "Indexed notices by status: indexed or the failure kind.",
			ConstLabels: serviceLabel,
		}, []string{"status"}),
		indexDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "notice_index_duration_seconds",
			Help:        "Notice indexing duration in seconds by status.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		}, []string{"status"}),
		indexInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "notice_index_in_flight",
			Help:        "Number of notices being indexed.",
			ConstLabels: serviceLabel,
		}),
		queueLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between notice submission and indexing start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: serviceLabel,
		}),
		deadLetters: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "dead_letters_total",
			Help:        "Notices parked in the dead-letter store after failed indexing.",
			ConstLabels: serviceLabel,
		}),
		RetrievalMetrics: NewRetrievalMetrics(registry, service),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return handlerFor(m.registry)
}

func (m *WorkerMetrics) StartNotice() {
	m.indexInFlight.Inc()
}

// FinishNotice labels failures with their domain kind so rejected
// notices and upstream outages show up separately.
func (m *WorkerMetrics) FinishNotice(duration time.Duration, err error) {
	m.indexInFlight.Dec()

	status := statusIndexed
	if err != nil {
		status = domain.Kind(err)
	}
	m.indexTotal.WithLabelValues(status).Inc()
	m.indexDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveQueueLag ignores negative lag from publishers with skewed clocks.
func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordDeadLetter() {
	m.deadLetters.Inc()
}
