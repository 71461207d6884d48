// Package metrics holds the Prometheus collectors for the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/receiptsplit/internal/calculator"
)

// Metrics groups the application collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	splits          *prometheus.CounterVec
	issues          *prometheus.CounterVec
}

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receiptsplit",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "receiptsplit",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		splits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receiptsplit",
			Name:      "splits_total",
			Help:      "Split computations by computer and outcome.",
		}, []string{"computer", "outcome"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receiptsplit",
			Name:      "validation_issues_total",
			Help:      "Validation issues attached to computed splits, by code.",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.splits,
		m.issues,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one finished HTTP request. A nil Metrics records
// nothing.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveSplit records a split computation and the issues it carried.
func (m *Metrics) ObserveSplit(computer string, result *calculator.BillSplitResult, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.splits.WithLabelValues(computer, "error").Inc()
		return
	}
	outcome := "ok"
	if len(result.Warnings) > 0 {
		outcome = "warnings"
	}
	m.splits.WithLabelValues(computer, outcome).Inc()
	for _, issue := range result.Warnings {
		m.issues.WithLabelValues(string(issue.Code)).Inc()
	}
}
