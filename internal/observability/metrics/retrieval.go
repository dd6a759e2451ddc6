package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RetrievalMetrics records re-ranking outcomes and upstream retries. Both
// binaries embed it: the API retrieves for search and chat, the worker
// retries the embedder and Qdrant while indexing.
type RetrievalMetrics struct {
	outcomesTotal *prometheus.CounterVec
	confidence    *prometheus.HistogramVec
	results       prometheus.Histogram
	duration      *prometheus.HistogramVec
	upstreamRetry *prometheus.CounterVec
}

func NewRetrievalMetrics(registry prometheus.Registerer, service string) *RetrievalMetrics {
	factory := promauto.With(registry)
	serviceLabel := prometheus.Labels{"service": service}

	return &RetrievalMetrics{
		outcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "outcomes_total",
			Help:        "Retrievals by outcome (ranked, fallback, empty, error).",
			ConstLabels: serviceLabel,
		}, []string{"outcome"}),
		confidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "confidence",
			Help:        "Mean semantic similarity of returned documents.",
			Buckets:     prometheus.LinearBuckets(0.1, 0.1, 10),
			ConstLabels: serviceLabel,
		}, []string{"outcome"}),
		results: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "results",
			Help:        "Returned documents per retrieval.",
			Buckets:     []float64{0, 1, 3, 5, 10, 20, 50},
			ConstLabels: serviceLabel,
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "duration_seconds",
			Help:        "Retrieval duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		}, []string{"outcome"}),
		upstreamRetry: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "upstream",
			Name:        "retries_total",
			Help:        "Retries of upstream calls by operation.",
			ConstLabels: serviceLabel,
		}, []string{"operation"}),
	}
}

func (m *RetrievalMetrics) ObserveRetrieval(outcome string, resultCount int, confidence float64, durationSeconds float64) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.outcomesTotal.WithLabelValues(outcome).Inc()
	m.confidence.WithLabelValues(outcome).Observe(confidence)
	m.results.Observe(float64(resultCount))
	m.duration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordUpstreamRetry matches resilience.RetryHook.
func (m *RetrievalMetrics) RecordUpstreamRetry(operation string, _ int, _ error) {
	m.upstreamRetry.WithLabelValues(operation).Inc()
}
