// internal/cache/metrics.go
package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fantrack_cache_hits_total",
			Help: "Cache hits by tier",
		},
		[]string{"tier"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fantrack_cache_misses_total",
			Help: "Cache misses by tier",
		},
		[]string{"tier"},
	)

	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fantrack_cache_evictions_total",
			Help: "Entries evicted by TTL expiry",
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fantrack_cache_entries",
			Help: "Entries currently held in memory",
		},
	)
)
