package middleware

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bkr/apigateway/internal/observability"
	"github.com/bkr/apigateway/internal/pipeline"
	"github.com/bkr/apigateway/internal/util"
)

type tracingMiddleware struct {
	tracer *observability.Tracer
}

// Tracing returns a middleware that starts a server span per request. The
// inbound W3C trace context, if any, becomes the parent.
func Tracing(tracer *observability.Tracer) pipeline.Middleware {
	return &tracingMiddleware{tracer: tracer}
}

func (m *tracingMiddleware) Name() string { return NameTracing }
func (m *tracingMiddleware) Order() int   { return OrderTracing }

func (m *tracingMiddleware) Intercept(rc *pipeline.RequestContext, next pipeline.Handler) (*pipeline.Response, error) {
	if m.tracer == nil {
		return next.Serve(rc)
	}

	r := rc.Request
	ctx := observability.ExtractTraceContext(rc.Context(), r.Header)
	ctx, span := m.tracer.StartSpan(ctx, "HTTP "+r.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.String("gateway.request_id", rc.RequestID),
		),
	)
	defer span.End()

	rc.SetContext(observability.ContextWithSpanIDs(ctx, span))

	resp, err := next.Serve(rc)

	status := statusOf(resp, err)
	span.SetAttributes(
		attribute.String("gateway.route", rc.RouteID()),
		attribute.Int("http.response.status_code", status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, util.KindOf(err).String())
	} else if status >= 500 {
		span.SetStatus(codes.Error, "")
	}

	return resp, err
}
