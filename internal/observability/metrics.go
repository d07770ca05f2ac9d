package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedRoute is the route label used for requests that do not match
// any configured route, keeping label cardinality bounded.
const UnmatchedRoute = "unmatched"

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	activeRequests   *prometheus.GaugeVec
	upstreamAttempts *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	poolInFlight     *prometheus.GaugeVec
	authFailures     *prometheus.CounterVec
	circuitBreaker   *prometheus.GaugeVec
	rateLimitHits    *prometheus.CounterVec
	buildInfo        *prometheus.GaugeVec
	startTime        prometheus.Gauge
	registry         *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "apigateway"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "route", "status"},
	)

	m.activeRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of active HTTP requests",
		},
		[]string{"method"},
	)

	m.upstreamAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "attempts_total",
			Help:      "Total number of upstream dispatch attempts",
		},
		[]string{"route", "outcome"},
	)

	m.upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Total number of failed dispatches by error kind",
		},
		[]string{"route", "kind"},
	)

	m.upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "duration_seconds",
			Help:      "Time to upstream response headers in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.poolInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "in_flight",
			Help:      "Upstream exchanges holding a pool slot",
		},
		[]string{"target"},
	)

	m.authFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Total number of rejected credentials by reason",
		},
		[]string{"reason"},
	)

	m.circuitBreaker = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help: "Circuit breaker state " +
				"(0=closed, 1=half-open, 2=open)",
		},
		[]string{"target"},
	)

	m.rateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of rate limit hits",
		},
		[]string{"route"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the gateway",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the gateway in unix seconds",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
		m.upstreamAttempts,
		m.upstreamErrors,
		m.upstreamDuration,
		m.poolInFlight,
		m.authFailures,
		m.circuitBreaker,
		m.rateLimitHits,
		m.buildInfo,
		m.startTime,
	)

	m.startTime.SetToCurrentTime()

	return m
}

// RecordRequest records a completed HTTP request.
// The route parameter must be a route id, never the raw request path.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = UnmatchedRoute
	}
	statusStr := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(method, route, statusStr).Inc()
	m.requestDuration.WithLabelValues(method, route, statusStr).Observe(duration.Seconds())
}

// IncrementActiveRequests increments the active requests gauge.
func (m *Metrics) IncrementActiveRequests(method string) {
	if m == nil {
		return
	}
	m.activeRequests.WithLabelValues(method).Inc()
}

// DecrementActiveRequests decrements the active requests gauge.
func (m *Metrics) DecrementActiveRequests(method string) {
	if m == nil {
		return
	}
	m.activeRequests.WithLabelValues(method).Dec()
}

// RecordUpstreamAttempt records one upstream attempt and its outcome
// ("success", "upstream_unavailable", "upstream_timeout", ...).
func (m *Metrics) RecordUpstreamAttempt(route, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamAttempts.WithLabelValues(route, outcome).Inc()
	if outcome == "success" {
		m.upstreamDuration.WithLabelValues(route).Observe(duration.Seconds())
	}
}

// RecordUpstreamError records a dispatch that failed after all attempts.
func (m *Metrics) RecordUpstreamError(route, kind string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(route, kind).Inc()
}

// SetPoolInFlight sets the number of in-flight exchanges for a target.
func (m *Metrics) SetPoolInFlight(target string, n int64) {
	if m == nil {
		return
	}
	m.poolInFlight.WithLabelValues(target).Set(float64(n))
}

// RecordAuthFailure records a rejected credential.
func (m *Metrics) RecordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state.
func (m *Metrics) SetCircuitBreakerState(target string, state int) {
	if m == nil {
		return
	}
	m.circuitBreaker.WithLabelValues(target).Set(float64(state))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = UnmatchedRoute
	}
	m.rateLimitHits.WithLabelValues(route).Inc()
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint. It serves the
// gateway registry together with the default registry, which carries the
// Go runtime and process collectors and the package-level promauto metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{m.registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RequestsTotal exposes the request counter, mainly for tests.
func (m *Metrics) RequestsTotal() *prometheus.CounterVec {
	return m.requestsTotal
}

// UpstreamAttempts exposes the attempt counter, mainly for tests.
func (m *Metrics) UpstreamAttempts() *prometheus.CounterVec {
	return m.upstreamAttempts
}

// AuthFailures exposes the auth failure counter, mainly for tests.
func (m *Metrics) AuthFailures() *prometheus.CounterVec {
	return m.authFailures
}

// RateLimitHits exposes the rate limit counter, mainly for tests.
func (m *Metrics) RateLimitHits() *prometheus.CounterVec {
	return m.rateLimitHits
}

// PoolInFlight returns the upstream in-flight gauge.
func (m *Metrics) PoolInFlight() *prometheus.GaugeVec {
	return m.poolInFlight
}
