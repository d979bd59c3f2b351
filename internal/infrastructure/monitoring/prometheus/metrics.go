// Package prometheus registers the TermLens pipeline metrics. One Metrics
// value is created per process and shared by the worker, the API server, and
// the intelligence clients.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the platform emits.
type Metrics struct {
	// Pipeline
	RunsTotal       *prometheus.CounterVec // status: completed|completed_partial|failed
	RunDuration     prometheus.Histogram
	ClustersPerRun  prometheus.Histogram
	TermsDropped    prometheus.Counter
	NoiseTermsTotal prometheus.Counter

	// Embedding provider
	EmbeddingCalls     *prometheus.CounterVec // outcome: ok|retried|failed
	EmbeddingDuration  prometheus.Histogram
	EmbeddingCacheHits prometheus.Counter
	EmbeddingBatchSize prometheus.Histogram

	// Semantic annotator
	AnnotationCalls    *prometheus.CounterVec // outcome: ok|degraded
	AnnotationDuration prometheus.Histogram

	// HTTP layer
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	runDurationBuckets  = []float64{1, 5, 10, 30, 60, 120, 300, 600}
	callDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	httpDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
)

// NewMetrics registers all collectors on reg and returns them. Passing a
// fresh prometheus.NewRegistry keeps tests isolated from the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termlens", Name: "analysis_runs_total",
			Help: "Completed analysis runs by terminal status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "termlens", Name: "analysis_run_duration_seconds",
			Help: "Wall-clock duration of a full analysis run.", Buckets: runDurationBuckets,
		}),
		ClustersPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "termlens", Name: "analysis_clusters_per_run",
			Help: "Clusters produced per run, hierarchy nodes included.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		TermsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termlens", Name: "analysis_terms_dropped_total",
			Help: "Terms excluded from clustering after embedding retries were exhausted.",
		}),
		NoiseTermsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termlens", Name: "analysis_noise_terms_total",
			Help: "Terms labelled as noise by the density clusterer.",
		}),
		EmbeddingCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termlens", Name: "embedding_calls_total",
			Help: "Embedding provider calls by outcome.",
		}, []string{"outcome"}),
		EmbeddingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "termlens", Name: "embedding_call_duration_seconds",
			Help: "Latency of individual embedding calls.", Buckets: callDurationBuckets,
		}),
		EmbeddingCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termlens", Name: "embedding_cache_hits_total",
			Help: "Embeddings served from the redis cache.",
		}),
		EmbeddingBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "termlens", Name: "embedding_batch_size",
			Help: "Terms per embedding batch.", Buckets: []float64{1, 2, 3, 4, 5},
		}),
		AnnotationCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termlens", Name: "annotation_calls_total",
			Help: "Semantic annotator calls by outcome.",
		}, []string{"outcome"}),
		AnnotationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "termlens", Name: "annotation_call_duration_seconds",
			Help: "Latency of annotator calls.", Buckets: callDurationBuckets,
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termlens", Name: "http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "termlens", Name: "http_request_duration_seconds",
			Help: "HTTP request latency.", Buckets: httpDurationBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.RunsTotal, m.RunDuration, m.ClustersPerRun, m.TermsDropped, m.NoiseTermsTotal,
		m.EmbeddingCalls, m.EmbeddingDuration, m.EmbeddingCacheHits, m.EmbeddingBatchSize,
		m.AnnotationCalls, m.AnnotationDuration,
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
	)
	return m
}
