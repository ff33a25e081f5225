package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for worker requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpi_requests_total",
		Help: "Total block requests by query and outcome",
	}, []string{"query", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcpi_request_duration_seconds",
		Help:    "Round trip time of a single block request by query",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.3, 1},
	}, []string{"query"})

	workersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcpi_workers_active",
		Help: "Number of fetch workers currently running",
	})
)
