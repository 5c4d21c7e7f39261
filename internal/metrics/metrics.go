// Package metrics exposes Prometheus instrumentation for the lookup facade.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors used across the service. A nil
// *Metrics is valid and turns every recording call into a no-op, so tests
// can run without touching the default registry.
type Metrics struct {
	LookupsTotal     *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  prometheus.Histogram
	CacheEntries     prometheus.Gauge
	CacheSweptTotal  prometheus.Counter
}

// New creates and registers the collectors under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		LookupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Total lookups by outcome (hit, miss, error)",
		}, []string{"outcome"}),
		UpstreamRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total upstream fetches by result (ok, error)",
		}, []string{"result"}),
		UpstreamLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream fetch latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of entries physically stored in the cache",
		}),
		CacheSweptTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_swept_entries_total",
			Help:      "Total expired entries reclaimed by the sweeper",
		}),
	}
}

// RecordLookup counts one lookup with the given outcome.
func (m *Metrics) RecordLookup(outcome string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstream counts one upstream fetch and observes its latency.
func (m *Metrics) RecordUpstream(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(result).Inc()
	m.UpstreamLatency.Observe(duration.Seconds())
}

// SetCacheEntries updates the stored-entry gauge.
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// AddSwept counts entries reclaimed by a sweep pass.
func (m *Metrics) AddSwept(n int) {
	if m == nil {
		return
	}
	m.CacheSweptTotal.Add(float64(n))
}
