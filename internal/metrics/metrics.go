// Package metrics provides Prometheus metrics for chunkchain sessions.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// SessionMetrics holds the collectors updated by a session.
type SessionMetrics struct {
	Registry *prometheus.Registry

	ChunksAppended    prometheus.Counter
	Deletes           *prometheus.CounterVec // labels: result=hit|miss
	Sends             prometheus.Counter
	BytesSent         prometheus.Counter
	IntegrityChecks   prometheus.Counter
	IntegrityFailures prometheus.Counter
	ListChunks        prometheus.Gauge
	ListBytes         prometheus.Gauge
}

// New registers a fresh set of session metrics on their own registry.
func New() *SessionMetrics {
	reg := prometheus.NewRegistry()
	return &SessionMetrics{
		Registry: reg,
		ChunksAppended: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chunkchain_chunks_appended_total",
			Help: "Total chunks appended to the session list",
		}),
		Deletes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "chunkchain_deletes_total",
			Help: "Delete requests by outcome",
		}, []string{"result"}),
		Sends: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chunkchain_sends_total",
			Help: "Payloads written to the sink",
		}),
		BytesSent: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chunkchain_bytes_sent_total",
			Help: "Bytes written to the sink",
		}),
		IntegrityChecks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chunkchain_integrity_checks_total",
			Help: "Integrity verifications run",
		}),
		IntegrityFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chunkchain_integrity_failures_total",
			Help: "Integrity verifications that found a bad link",
		}),
		ListChunks: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chunkchain_list_chunks",
			Help: "Chunks currently held by the session list",
		}),
		ListBytes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chunkchain_list_bytes",
			Help: "Payload bytes currently held by the session list",
		}),
	}
}

// ObserveDelete counts a delete by outcome.
func (m *SessionMetrics) ObserveDelete(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.Deletes.WithLabelValues(result).Inc()
}

// SetList records the current list shape.
func (m *SessionMetrics) SetList(chunks int, bytes int64) {
	if m == nil {
		return
	}
	m.ListChunks.Set(float64(chunks))
	m.ListBytes.Set(float64(bytes))
}

// Dump writes all metrics in the Prometheus text format.
func (m *SessionMetrics) Dump(w io.Writer) error {
	families, err := m.Registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
