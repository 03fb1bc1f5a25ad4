// Package metrics exposes engine measurements through a Prometheus registry.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Registry holds all paperlock metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	AuditEntriesTotal *prometheus.CounterVec
	ReleasesTotal     *prometheus.CounterVec
	KDFDuration       prometheus.Histogram
	BlobFetchDuration *prometheus.HistogramVec
}

// NewRegistry creates a Registry with every metric registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.AuditEntriesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperlock_audit_entries_total",
			Help: "Total number of access log entries recorded",
		},
		[]string{"action"},
	)

	r.ReleasesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperlock_release_total",
			Help: "Total number of release attempts by outcome",
		},
		[]string{"outcome"},
	)

	r.KDFDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paperlock_kdf_duration_seconds",
			Help:    "Password key derivation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
	)

	r.BlobFetchDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paperlock_blob_fetch_duration_seconds",
			Help:    "Blob store read duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	return r
}

// Gatherer returns the underlying registry for exposition.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteText writes every metric family in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
