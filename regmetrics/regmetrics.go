// Package regmetrics instruments the registry's domain operations with
// Prometheus collectors, the same constructor-and-field shape the teacher's
// metrics package uses for its statsd instruments (metrics/metrics.go), but
// built on github.com/prometheus/client_golang per SPEC_FULL.md §10.5.
package regmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the registry's collectors. A *Metrics is threaded into
// service.Registry by constructor, the same way the teacher threads its
// statsd Statter into each component. RecordsEvictedTotal is registered but
// nothing in this module increments it: storage.Engine.UpdateRecord evicts
// without reporting the eviction to its caller, so the counter stays at 0.
type Metrics struct {
	OperationsTotal    *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	RecordsEvictedTotal prometheus.Counter
	KeysExpiredTotal    prometheus.Counter
	RecordsExpiredTotal prometheus.Counter
	TombstonesExpiredTotal prometheus.Counter
	StaleKeysSurfacedTotal prometheus.Counter
}

// New constructs and registers every collector against reg. Passing a fresh
// prometheus.NewRegistry() in tests keeps instrumentation out of the default
// global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "registry",
			Name:      "operations_total",
			Help:      "Count of domain operations, by name and result.",
		}, []string{"operation", "result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "registry",
			Name:      "operation_duration_seconds",
			Help:      "Latency of domain operations, by name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		RecordsEvictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "registry",
			Name:      "records_evicted_total",
			Help:      "Count of records evicted to admit a higher-weight record.",
		}),
		KeysExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "registry",
			Name:      "keys_expired_total",
			Help:      "Count of keys removed by clear_expired.",
		}),
		RecordsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "registry",
			Name:      "records_expired_total",
			Help:      "Count of records removed by clear_expired.",
		}),
		TombstonesExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "registry",
			Name:      "tombstones_expired_total",
			Help:      "Count of tombstones removed by clear_expired.",
		}),
		StaleKeysSurfacedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "registry",
			Name:      "stale_keys_surfaced_total",
			Help:      "Count of keys surfaced by evict_stale.",
		}),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.RecordsEvictedTotal,
		m.KeysExpiredTotal,
		m.RecordsExpiredTotal,
		m.TombstonesExpiredTotal,
		m.StaleKeysSurfacedTotal,
	)
	return m
}

// ObserveResult increments OperationsTotal for op/result — "ok" or a
// regerrors.Kind string.
func (m *Metrics) ObserveResult(op, result string) {
	m.OperationsTotal.WithLabelValues(op, result).Inc()
}
