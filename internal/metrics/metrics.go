package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RealizationsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensembleprov_realizations_loaded_total",
			Help: "Realizations successfully loaded per ensemble",
		},
		[]string{"ensemble"},
	)

	RealizationsExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensembleprov_realizations_excluded_total",
			Help: "Realizations excluded for missing completion markers",
		},
		[]string{"ensemble"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensembleprov_cache_hits_total",
			Help: "Cache lookups served from the artifact store",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensembleprov_cache_misses_total",
			Help: "Cache lookups that required a fresh computation",
		},
		[]string{"kind"},
	)

	ProviderBuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ensembleprov_provider_builds_total",
			Help: "Provider instances built (deduplicated requests excluded)",
		},
	)

	ProviderBuildSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ensembleprov_provider_build_seconds",
			Help:    "Wall time to load, resample and assemble a provider",
			Buckets: prometheus.DefBuckets,
		},
	)
)
