package router

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// routerMetrics contains Prometheus metrics for route matching.
type routerMetrics struct {
	matches *prometheus.CounterVec
	misses  prometheus.Counter
}

var (
	routerMetricsInstance *routerMetrics
	routerMetricsOnce     sync.Once
)

// getRouterMetrics returns the singleton router metrics instance.
func getRouterMetrics() *routerMetrics {
	routerMetricsOnce.Do(func() {
		routerMetricsInstance = &routerMetrics{
			matches: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "apigateway",
					Subsystem: "router",
					Name:      "matches_total",
					Help:      "Total number of requests matched per route",
				},
				[]string{"route"},
			),
			misses: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "apigateway",
					Subsystem: "router",
					Name:      "misses_total",
					Help:      "Total number of requests that matched no route",
				},
			),
		}
	})
	return routerMetricsInstance
}

func recordMatch(routeID string) {
	getRouterMetrics().matches.WithLabelValues(routeID).Inc()
}

func recordMiss() {
	getRouterMetrics().misses.Inc()
}
