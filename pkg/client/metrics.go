package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for fetch operations.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpi_fetch_total",
		Help: "Total fetch calls by query and status",
	}, []string{"query", "status"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcpi_fetch_duration_seconds",
		Help:    "Fetch duration in seconds by query",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"query"})

	fetchBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpi_fetch_blocks_total",
		Help: "Total coordinates returned by successful fetches by query",
	}, []string{"query"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpi_fetch_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})
)
