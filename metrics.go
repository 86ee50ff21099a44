package snapkv

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "snapkv"

type metrics struct {
	writeWait  prometheus.Histogram
	collectors []prometheus.Collector
}

// newMetrics exposes the database's counters. Counters are read from the
// same atomics that back Stats.
func newMetrics(db *DB) *metrics {
	m := &metrics{
		writeWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "write_wait_seconds",
			Help:      "Time spent waiting for the write gate.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	counter := func(name, help string, f func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(f()) })
	}
	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, f)
	}
	m.collectors = []prometheus.Collector{
		m.writeWait,
		counter("commits_total", "Committed write transactions that published a version.", db.commits.Load),
		counter("rollbacks_total", "Rolled back write transactions.", db.rollbacks.Load),
		counter("write_contention_total", "Write transactions refused by the write gate.", db.contention.Load),
		counter("changefeed_errors_total", "Commits whose changes could not be published.", db.feedErrors.Load),
		gauge("current_version", "Id of the current version.", func() float64 {
			return float64(db.CurrentVersion())
		}),
		gauge("live_versions", "Versions referenced by the database or an open transaction.", func() float64 {
			return float64(db.liveVersions.Load())
		}),
		gauge("active_readers", "Open read-only transactions.", func() float64 {
			return float64(db.activeReaders.Load())
		}),
	}
	return m
}

func (m *metrics) register(r prometheus.Registerer) error {
	for i, c := range m.collectors {
		if err := r.Register(c); err != nil {
			for _, registered := range m.collectors[:i] {
				r.Unregister(registered)
			}
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}

func (m *metrics) unregister(r prometheus.Registerer) {
	for _, c := range m.collectors {
		r.Unregister(c)
	}
}
