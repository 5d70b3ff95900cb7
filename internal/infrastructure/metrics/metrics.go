// Package metrics exposes Prometheus instruments for HTTP traffic,
// allocation commits and bulk imports
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Metrics holds the service's instruments. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	httpInFlight       prometheus.Gauge
	allocationCommits  *prometheus.CounterVec
	allocationsWritten prometheus.Counter
	commitDuration     prometheus.Histogram
	importRuns         *prometheus.CounterVec
	importedDocuments  *prometheus.CounterVec
	importSkippedRows  prometheus.Counter
	importBatches      prometheus.Counter
}

// New registers the instruments on a fresh registry that also carries the
// Go runtime and process collectors
func New(env string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(registry, registry, env)
}

// NewWithRegistry registers the instruments on registerer
func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer, env string) *Metrics {
	env = strings.TrimSpace(env)
	if env == "" {
		env = "unknown"
	}
	constLabels := prometheus.Labels{"env": env}

	m := &Metrics{
		gatherer: gatherer,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "propbill_http_requests_total",
			Help:        "HTTP requests by method, route and status.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "propbill_http_request_duration_seconds",
			Help:        "HTTP request latency by method and route.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}, []string{"method", "route"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "propbill_http_requests_in_flight",
			Help:        "HTTP requests currently being served.",
			ConstLabels: constLabels,
		}),
		allocationCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "propbill_allocation_commits_total",
			Help:        "Allocation commit attempts by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		allocationsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "propbill_allocations_written_total",
			Help:        "Allocation documents written, including those from failed commits.",
			ConstLabels: constLabels,
		}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "propbill_allocation_commit_duration_seconds",
			Help:        "Allocation commit latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}),
		importRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "propbill_import_runs_total",
			Help:        "Bulk import runs by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		importedDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "propbill_imported_documents_total",
			Help:        "Documents written by bulk imports per collection.",
			ConstLabels: constLabels,
		}, []string{"collection"}),
		importSkippedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "propbill_import_skipped_rows_total",
			Help:        "Spreadsheet rows skipped for an unresolvable property.",
			ConstLabels: constLabels,
		}),
		importBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "propbill_import_batches_total",
			Help:        "Batches committed by bulk imports.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.httpInFlight,
		m.allocationCommits,
		m.allocationsWritten,
		m.commitDuration,
		m.importRuns,
		m.importedDocuments,
		m.importSkippedRows,
		m.importBatches,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// HTTPRequestStarted marks a request as in flight
func (m *Metrics) HTTPRequestStarted() {
	if m == nil {
		return
	}
	m.httpInFlight.Inc()
}

// ObserveHTTPRequest records a finished request. route is the matched route
// pattern so path parameters do not explode label cardinality.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpInFlight.Dec()
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveAllocationCommit records one commit attempt
func (m *Metrics) ObserveAllocationCommit(result string, written int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.allocationCommits.WithLabelValues(result).Inc()
	m.allocationsWritten.Add(float64(written))
	m.commitDuration.Observe(elapsed.Seconds())
}

// ObserveImportBatch records one committed import batch
func (m *Metrics) ObserveImportBatch(collection string, ops int) {
	if m == nil {
		return
	}
	m.importBatches.Inc()
	m.importedDocuments.WithLabelValues(collection).Add(float64(ops))
}

// ObserveImportRun records a finished import
func (m *Metrics) ObserveImportRun(result string, skipped int) {
	if m == nil {
		return
	}
	m.importRuns.WithLabelValues(result).Inc()
	m.importSkippedRows.Add(float64(skipped))
}
