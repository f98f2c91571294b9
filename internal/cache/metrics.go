// Package cache – Prometheus instrumentation.
//
// This file exposes the collectors for cache behavior and lock contention.
// Labels are kept coarse (no per-media labels) so cardinality stays bounded
// regardless of catalog size. All collectors are safe for concurrent use.
package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	// cacheHits counts aggregate lookups served from the cache.
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediareview_cache_hits_total",
		Help: "Total number of aggregate reads served from the cache.",
	})

	// cacheMisses counts aggregate lookups that recomputed from the store.
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediareview_cache_misses_total",
		Help: "Total number of aggregate reads recomputed from durable storage.",
	})

	// cacheEvictions counts LRU evictions of aggregate records.
	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediareview_cache_evictions_total",
		Help: "Total number of aggregate records evicted by the LRU policy.",
	})

	// rankRebuilds counts full recomputations of the top-rated ranking.
	rankRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediareview_ranking_rebuilds_total",
		Help: "Total number of top-rated ranking recomputations.",
	})

	// lockTimeouts counts per-media section acquisitions that timed out.
	lockTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediareview_lock_timeouts_total",
		Help: "Total number of per-media section acquisitions that timed out.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheEvictions, rankRebuilds, lockTimeouts)
}
