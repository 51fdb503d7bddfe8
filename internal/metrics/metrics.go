// Package metrics exposes prometheus instruments for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imgbot"

// Metrics holds the pipeline instruments on a private registry. A nil *Metrics is a no-op.
type Metrics struct {
	registry       *prometheus.Registry
	events         *prometheus.CounterVec
	stagedBytes    prometheus.Histogram
	uploadDuration *prometheus.HistogramVec
	cacheRemovals  *prometheus.CounterVec
}

// New registers the pipeline instruments plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound file events by origin and terminal outcome.",
		}, []string{"origin", "outcome"}),
		stagedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "staged_bytes",
			Help:      "Size of staged payloads.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Latency of upload requests to the image host.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		cacheRemovals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_removed_files_total",
			Help:      "Staged files removed by admin purge or the janitor.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.events,
		m.stagedBytes,
		m.uploadDuration,
		m.cacheRemovals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent counts one terminal pipeline outcome.
func (m *Metrics) ObserveEvent(origin, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(origin, outcome).Inc()
}

// ObserveStaged records the size of a staged payload.
func (m *Metrics) ObserveStaged(size int64) {
	if m == nil {
		return
	}
	m.stagedBytes.Observe(float64(size))
}

// ObserveUpload records one upload request.
func (m *Metrics) ObserveUpload(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.uploadDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObserveCacheRemoval counts files removed from the cache for reason ("purge", "sweep").
func (m *Metrics) ObserveCacheRemoval(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheRemovals.WithLabelValues(reason).Add(float64(n))
}
