package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couriergate",
			Name:      "fetch_total",
			Help:      "Total intercepted fetches by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couriergate",
			Name:      "cache_hits_total",
			Help:      "Total cache hits per generation",
		},
		[]string{"generation"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couriergate",
			Name:      "cache_misses_total",
			Help:      "Total cache misses per generation",
		},
		[]string{"generation"},
	)

	syncItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couriergate",
			Name:      "sync_items_total",
			Help:      "Queue items replayed during sync, by tag and result",
		},
		[]string{"tag", "result"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couriergate",
			Name:      "sync_runs_total",
			Help:      "Sync cycles executed per tag",
		},
		[]string{"tag"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couriergate",
			Name:      "notifications_total",
			Help:      "Push payloads received, by result (shown or dropped)",
		},
		[]string{"result"},
	)

	originUnhealthy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "couriergate",
			Name:      "origin_unhealthy_endpoints",
			Help:      "Number of unhealthy origin endpoints",
		},
	)
)

func Init() {
	prometheus.MustRegister(fetchTotal, cacheHits, cacheMisses, syncItems, syncRuns, notifications, originUnhealthy)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveFetch(strategy, outcome string) {
	fetchTotal.WithLabelValues(strategy, outcome).Inc()
}

func IncCacheHit(generation string) {
	cacheHits.WithLabelValues(generation).Inc()
}

func IncCacheMiss(generation string) {
	cacheMisses.WithLabelValues(generation).Inc()
}

func ObserveSyncItem(tag, result string) {
	syncItems.WithLabelValues(tag, result).Inc()
}

func IncSyncRun(tag string) {
	syncRuns.WithLabelValues(tag).Inc()
}

func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

func SetOriginUnhealthy(value float64) {
	originUnhealthy.Set(value)
}
