package middleware

import (
	"github.com/bkr/apigateway/internal/observability"
	"github.com/bkr/apigateway/internal/pipeline"
)

type requestMetricsMiddleware struct {
	metrics *observability.Metrics
}

// RequestMetrics returns a middleware that records request counts,
// latency and in-flight requests. Routes are labelled by id.
func RequestMetrics(metrics *observability.Metrics) pipeline.Middleware {
	return &requestMetricsMiddleware{metrics: metrics}
}

func (m *requestMetricsMiddleware) Name() string { return NameRequestMetrics }
func (m *requestMetricsMiddleware) Order() int   { return OrderRequestMetrics }

func (m *requestMetricsMiddleware) Intercept(
	rc *pipeline.RequestContext,
	next pipeline.Handler,
) (*pipeline.Response, error) {
	method := methodLabel(rc.Request.Method)

	m.metrics.IncrementActiveRequests(method)
	defer m.metrics.DecrementActiveRequests(method)

	resp, err := next.Serve(rc)
	m.metrics.RecordRequest(method, rc.RouteID(), statusOf(resp, err), rc.Elapsed())
	return resp, err
}
