// Package metrics exposes the Prometheus metrics of the block fetcher.
// All metrics are defined in their respective packages (pool, dispatch, client, cache)
// with promauto and registered on the default registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("component", "mcpi-metrics").Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Pool Metrics (pkg/pool):
//   - mcpi_pool_connections (Gauge): Open pooled connections
//   - mcpi_pool_open_duration_seconds (Histogram): Time to establish a full pool
//   - mcpi_dial_retries_total (Counter): Dial retry attempts
//   - mcpi_dial_retry_backoff_seconds (Histogram): Backoff before a dial retry
//   - mcpi_dial_failures_total (Counter): Pools that failed to open
//
// Dispatch Metrics (pkg/dispatch):
//   - mcpi_requests_total{query, status} (Counter): Requests by query and outcome
//   - mcpi_request_duration_seconds{query} (Histogram): Round trip time per request
//   - mcpi_workers_active (Gauge): Workers currently running
//
// Fetch Metrics (pkg/client):
//   - mcpi_fetch_total{query, status} (Counter): Fetch calls by query and status (ok, cached, error)
//   - mcpi_fetch_duration_seconds{query} (Histogram): Fetch duration
//   - mcpi_fetch_blocks_total{query} (Counter): Coordinates returned by successful fetches
//   - mcpi_fetch_errors_total{class} (Counter): Fetch errors by class
//
// Cache Metrics (pkg/cache):
//   - mcpi_cache_hits_total{query} (Counter): Result set cache hits
//   - mcpi_cache_misses_total{query} (Counter): Result set cache misses
//   - mcpi_cache_size_bytes (Gauge): Bytes written to the cache
//   - mcpi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Blocks per second
//   sum(rate(mcpi_fetch_blocks_total[1m]))
//
//   # P95 request round trip
//   histogram_quantile(0.95, rate(mcpi_request_duration_seconds_bucket[5m]))
//
//   # Fetch error rate by class
//   sum by (class) (rate(mcpi_fetch_errors_total[5m]))
//
//   # Cache hit rate
//   sum(rate(mcpi_cache_hits_total[5m])) /
//   (sum(rate(mcpi_cache_hits_total[5m])) + sum(rate(mcpi_cache_misses_total[5m])))
