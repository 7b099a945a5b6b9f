// file: internal/metrics/metrics.go
// version: 2.0.0
// guid: 9f8e7d6c-5b4a-3210-9fed-cba876543210

// Package metrics counts what a run did. Each run owns its registry so
// counts start at zero and can be exported to a node_exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mmf"

// Recorder holds the counters for one run. A nil Recorder discards
// observations.
type Recorder struct {
	registry *prometheus.Registry

	filesProcessed  *prometheus.CounterVec
	catalogRequests *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	fileDuration    prometheus.Histogram
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		filesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files processed by outcome",
		}, []string{"outcome"}),
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Catalog searches by result",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result",
		}, []string{"result"}),
		fileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Histogram of per-file processing time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 10), // ~50ms up to several seconds
		}),
	}
	r.registry.MustRegister(r.filesProcessed, r.catalogRequests, r.cacheLookups, r.fileDuration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveFile counts a finished file and its processing time.
func (r *Recorder) ObserveFile(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.filesProcessed.WithLabelValues(outcome).Inc()
	r.fileDuration.Observe(d.Seconds())
}

// IncCatalogRequest counts a catalog search. result is "ok" or "error".
func (r *Recorder) IncCatalogRequest(result string) {
	if r == nil {
		return
	}
	r.catalogRequests.WithLabelValues(result).Inc()
}

// IncCacheLookup counts a result cache lookup.
func (r *Recorder) IncCacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// WriteTextfile writes the current values in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
