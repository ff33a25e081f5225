package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by query
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpi_cache_hits_total",
			Help: "Total number of result set cache hits",
		},
		[]string{"query"},
	)

	// CacheMisses tracks cache misses by query
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpi_cache_misses_total",
			Help: "Total number of result set cache misses",
		},
		[]string{"query"},
	)

	// CacheSize tracks bytes written to the cache
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcpi_cache_size_bytes",
			Help: "Bytes written to the result set cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpi_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "purge"
	)
)
