package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	registry        *prometheus.Registry
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	outcomes        *prometheus.CounterVec
	journalErrors   prometheus.Counter
}

// registerMetrics sets up a private registry so tests can build many servers
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnimint_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omnimint_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 90},
			},
			[]string{"path"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnimint_transaction_outcomes_total",
				Help: "Transaction outcomes by operation, protocol and message",
			},
			[]string{"operation", "protocol", "message"},
		),
		journalErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "omnimint_journal_errors_total",
				Help: "Submissions that could not be written to the journal",
			},
		),
	}

	m.registry.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.outcomes,
		m.journalErrors,
	)

	return m
}

func (m *serverMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
