package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jluxury929-hash/hyper/internal/circuitbreaker"
)

// serverMetrics holds Prometheus collectors for the server
type serverMetrics struct {
	registry        *prometheus.Registry
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	txOutcomes      *prometheus.CounterVec
	errorKinds      *prometheus.CounterVec
	rateLimited     prometheus.Counter
}

// registerMetrics sets up Prometheus collection on a registry owned by the server
func registerMetrics(breaker *circuitbreaker.CircuitBreaker) *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyper_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hyper_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		txOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyper_transactions_total",
				Help: "State-changing requests by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		errorKinds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyper_errors_total",
				Help: "Error responses by error kind",
			},
			[]string{"kind"},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hyper_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
	}

	m.registry.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.txOutcomes,
		m.errorKinds,
		m.rateLimited,
		prometheus.NewGoCollector(),
	)

	if breaker != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "hyper_circuit_breaker_state",
				Help: "Ledger circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			func() float64 { return float64(breaker.GetState()) },
		))
	}

	return m
}
