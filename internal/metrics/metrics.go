// Package metrics exposes Prometheus counters for protocol imports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skatescore/internal"
)

type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  *prometheus.Registry

	documents      *prometheus.CounterVec
	records        *prometheus.CounterVec
	linesSkipped   *prometheus.CounterVec
	importDuration prometheus.Histogram
}

type Option func(*Manager)

func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets the buckets of the import duration histogram, in seconds.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// NewManager registers its collectors on a private registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "skatescore",
		subsystem: "import",
		buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)
	m.documents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "documents_total",
		Help:      "Protocol documents processed, by outcome.",
	}, []string{"status"})
	m.records = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_created_total",
		Help:      "Records appended to the store, by record type.",
	}, []string{"type"})
	m.linesSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "lines_skipped_total",
		Help:      "Lines that produced no record, by reason.",
	}, []string{"reason"})
	m.importDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "document_duration_seconds",
		Help:      "Wall time spent importing one document.",
		Buckets:   m.buckets,
	})
	return m
}

func (m *Manager) DocumentProcessed(status string, took time.Duration) {
	m.documents.WithLabelValues(status).Inc()
	m.importDuration.Observe(took.Seconds())
}

func (m *Manager) RecordsCreated(rt internal.RecordType, n int) {
	if n <= 0 {
		return
	}
	m.records.WithLabelValues(string(rt)).Add(float64(n))
}

func (m *Manager) LinesSkipped(reason string, n int) {
	if n <= 0 {
		return
	}
	m.linesSkipped.WithLabelValues(reason).Add(float64(n))
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
