package metrics

import (
	"time"

	"paperlock/internal/paperlock"
)

// AuditRecorded counts one access log entry.
func (r *Registry) AuditRecorded(action paperlock.Action) {
	r.AuditEntriesTotal.WithLabelValues(string(action)).Inc()
}

// ReleaseCompleted counts one release attempt by outcome.
func (r *Registry) ReleaseCompleted(outcome string) {
	r.ReleasesTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) KeyDerivationObserved(d time.Duration) {
	r.KDFDuration.Observe(d.Seconds())
}

func (r *Registry) BlobFetchObserved(outcome string, d time.Duration) {
	r.BlobFetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

var _ paperlock.Metrics = (*Registry)(nil)
