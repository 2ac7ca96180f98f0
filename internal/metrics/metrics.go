package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters of one process
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	OracleCalls    *prometheus.CounterVec
	OracleLatency  *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
	SearchCalls    *prometheus.CounterVec
	Resolutions    *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	DocumentsTotal *prometheus.CounterVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		OracleCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sixc_oracle_calls_total",
				Help: "Oracle calls by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: success, cached, error, timeout, malformed, circuit_open
		),
		OracleLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sixc_oracle_latency_seconds",
				Help:    "Oracle call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sixc_cache_lookups_total",
				Help: "Result cache lookups by namespace and result",
			},
			[]string{"namespace", "result"}, // result: hit, miss
		),
		SearchCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sixc_search_calls_total",
				Help: "Web search calls by outcome",
			},
			[]string{"outcome"}, // outcome: success, empty, error, fetch_fallback
		),
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sixc_resolutions_total",
				Help: "Missing footnote resolutions by final state",
			},
			[]string{"outcome"}, // outcome: accepted, rejected
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sixc_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sixc_documents_total",
				Help: "Processed documents by quality gate result",
			},
			[]string{"gate"}, // gate: passed, failed, error
		),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// OracleCall records one oracle call
func (m *Metrics) OracleCall(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OracleCalls.WithLabelValues(kind, outcome).Inc()
	if outcome != "cached" {
		m.OracleLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// CacheLookup records a cache hit or miss
func (m *Metrics) CacheLookup(namespace string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(namespace, result).Inc()
}

// SearchCall records one search call
func (m *Metrics) SearchCall(outcome string) {
	if m == nil {
		return
	}
	m.SearchCalls.WithLabelValues(outcome).Inc()
}

// Resolution records the final state of one missing footnote
func (m *Metrics) Resolution(accepted bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// Stage records how long a pipeline stage took
func (m *Metrics) Stage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// Document records a finished document run
func (m *Metrics) Document(gate string) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues(gate).Inc()
}

// WriteTextfile writes every metric in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
