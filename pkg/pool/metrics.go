package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for connection pool operations.
var (
	poolConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcpi_pool_connections",
		Help: "Number of open pooled connections",
	})

	poolOpenDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mcpi_pool_open_duration_seconds",
		Help:    "Time to establish all connections of a pool",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
	})

	dialRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcpi_dial_retries_total",
		Help: "Total number of dial retry attempts",
	})

	dialRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mcpi_dial_retry_backoff_seconds",
		Help:    "Backoff duration before dial retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	dialFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcpi_dial_failures_total",
		Help: "Total number of connections that could not be established after all retries",
	})
)
