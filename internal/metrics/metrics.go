// Package metrics exposes the search proxy's Prometheus instrumentation
// (spec §4.I /metrics), grounded on the other_examples tfd-proxy's bare
// promhttp.Handler() wiring, generalized into named counters/histograms
// per pipeline stage and variant kind.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every metric the search proxy exports. A nil *Registry
// pointer is never passed around; call New once and share it.
type Registry struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	VariantsGenerated *prometheus.CounterVec
	VariantDispatched *prometheus.CounterVec
	VariantFailed     *prometheus.CounterVec
	VariantDuration   *prometheus.HistogramVec

	BackendCircuitOpen *prometheus.GaugeVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New registers every search proxy metric against reg and returns the
// Registry wrapper. Pass prometheus.NewRegistry() in tests to avoid
// colliding with the global DefaultRegisterer.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thaiproxy",
			Name:      "requests_total",
			Help:      "Total number of search requests, labeled by terminal state.",
		}, []string{"state"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "thaiproxy",
			Name:      "request_duration_seconds",
			Help:      "End-to-end search request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),

		VariantsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thaiproxy",
			Name:      "variants_generated_total",
			Help:      "Query variants produced by the query processor, by kind.",
		}, []string{"kind"}),

		VariantDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thaiproxy",
			Name:      "variants_dispatched_total",
			Help:      "Query variants dispatched to the search backend, by kind.",
		}, []string{"kind"}),

		VariantFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thaiproxy",
			Name:      "variants_failed_total",
			Help:      "Query variants that failed during dispatch, by kind and error kind.",
		}, []string{"kind", "error_kind"}),

		VariantDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "thaiproxy",
			Name:      "variant_duration_seconds",
			Help:      "Per-variant backend search latency, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		BackendCircuitOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "thaiproxy",
			Name:      "backend_circuit_open",
			Help:      "1 if the named backend's circuit breaker is open, else 0.",
		}, []string{"backend"}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "thaiproxy",
			Name:      "cache_hits_total",
			Help:      "Degraded-mode cache hits.",
		}),

		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "thaiproxy",
			Name:      "cache_misses_total",
			Help:      "Degraded-mode cache misses.",
		}),
	}
}
