// Package metrics exposes Prometheus collectors for the import pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reconciler"

// Metrics groups the collectors recorded by the pipeline.
type Metrics struct {
	remoteRequests *prometheus.CounterVec
	remoteRetries  *prometheus.CounterVec
	rateLimitWait  prometheus.Histogram
	rows           *prometheus.CounterVec
	files          *prometheus.CounterVec
	gatherer       prometheus.Gatherer
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Requests sent to the remote spreadsheet by operation and outcome.",
		}, []string{"op", "outcome"}),
		remoteRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_retries_total",
			Help:      "Retries scheduled by the retry policy by failure class.",
		}, []string{"class"}),
		rateLimitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent blocked by the request limiter.",
			Buckets:   []float64{0, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Statement rows by reconciliation or insertion result.",
		}, []string{"result"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Processed statement files by status.",
		}, []string{"status"}),
		gatherer: reg,
	}

	reg.MustRegister(m.remoteRequests, m.remoteRetries, m.rateLimitWait, m.rows, m.files)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveRequest counts one remote request.
func (m *Metrics) ObserveRequest(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.remoteRequests.WithLabelValues(op, outcome).Inc()
}

// ObserveRetry counts one scheduled retry.
func (m *Metrics) ObserveRetry(class string) {
	if m == nil {
		return
	}
	m.remoteRetries.WithLabelValues(class).Inc()
}

// ObserveWait records time blocked by the limiter.
func (m *Metrics) ObserveWait(d time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitWait.Observe(d.Seconds())
}

// AddRows adds n rows under result.
func (m *Metrics) AddRows(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(result).Add(float64(n))
}

// FileDone counts one processed file.
func (m *Metrics) FileDone(status string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(status).Inc()
}
