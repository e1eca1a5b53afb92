package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the session client. A nil
// *Metrics disables collection.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	SessionRebuilds prometheus.Counter
	SnapshotWrites  prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunaboxd_requests_total",
			Help: "Total HTTP requests issued through the session gateway.",
		},
		[]string{"method", "outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lunaboxd_request_duration_seconds",
			Help:    "HTTP request latency for gateway requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	sessionRebuilds := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lunaboxd_session_rebuilds_total",
			Help: "Times a fresh session was built because no valid snapshot could be restored.",
		},
	)
	snapshotWrites := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lunaboxd_snapshot_writes_total",
			Help: "Session snapshots persisted to disk.",
		},
	)

	registry.MustRegister(requests, requestDuration, sessionRebuilds, snapshotWrites)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		SessionRebuilds: sessionRebuilds,
		SnapshotWrites:  snapshotWrites,
	}
}

// ObserveRequest records one gateway request with its outcome label.
func (m *Metrics) ObserveRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, outcome).Inc()
	m.RequestDuration.Observe(d.Seconds())
}

// IncSessionRebuild increments the fresh-session counter.
func (m *Metrics) IncSessionRebuild() {
	if m == nil {
		return
	}
	m.SessionRebuilds.Inc()
}

// IncSnapshotWrite increments the persisted-snapshot counter.
func (m *Metrics) IncSnapshotWrite() {
	if m == nil {
		return
	}
	m.SnapshotWrites.Inc()
}
