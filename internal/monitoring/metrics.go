package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis paths recorded by the engines.
const (
	PathNeural   = "neural"
	PathLexical  = "lexical"
	PathFastPath = "fast_path"
	PathKeyword  = "keyword"
	PathCenter   = "center"
	PathEmpty    = "empty"
	PathDegraded = "degraded"
)

type Metrics struct {
	registry *prometheus.Registry

	analyses       *prometheus.CounterVec
	neuralLatency  prometheus.Histogram
	neuralFailures prometheus.Counter
	transitions    *prometheus.CounterVec
	modelReady     prometheus.Gauge
	cacheLookups   *prometheus.CounterVec
	feedbackStored *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedbackflow",
			Name:      "analyses_total",
			Help:      "Analyses performed, by operation and scoring path.",
		}, []string{"operation", "path"}),
		neuralLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "feedbackflow",
			Name:      "neural_inference_seconds",
			Help:      "Latency of neural classifier calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		neuralFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedbackflow",
			Name:      "neural_failures_total",
			Help:      "Neural classifier calls that errored or timed out.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedbackflow",
			Name:      "model_transitions_total",
			Help:      "Model lifecycle load attempts, by resulting state.",
		}, []string{"backend", "state"}),
		modelReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "feedbackflow",
			Name:      "model_ready",
			Help:      "1 when the neural backend is loaded.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedbackflow",
			Name:      "result_cache_lookups_total",
			Help:      "Result cache lookups, by outcome.",
		}, []string{"outcome"}),
		feedbackStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedbackflow",
			Name:      "feedback_stored_total",
			Help:      "Feedback records persisted, by source.",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.analyses,
		m.neuralLatency,
		m.neuralFailures,
		m.transitions,
		m.modelReady,
		m.cacheLookups,
		m.feedbackStored,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Nil receivers are no-ops so components can run without metrics.

func (m *Metrics) ObserveAnalysis(operation, path string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(operation, path).Inc()
}

func (m *Metrics) ObserveNeural(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.neuralLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.neuralFailures.Inc()
	}
}

func (m *Metrics) ObserveTransition(backend, state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(backend, state).Inc()
}

func (m *Metrics) SetModelReady(ready bool) {
	if m == nil {
		return
	}
	if ready {
		m.modelReady.Set(1)
		return
	}
	m.modelReady.Set(0)
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) ObserveStored(source string, n int) {
	if m == nil {
		return
	}
	m.feedbackStored.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
