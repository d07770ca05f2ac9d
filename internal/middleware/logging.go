package middleware

import (
	"github.com/bkr/apigateway/internal/observability"
	"github.com/bkr/apigateway/internal/pipeline"
	"github.com/bkr/apigateway/internal/util"
)

type loggingMiddleware struct {
	logger observability.Logger
}

// Logging returns a middleware that logs a begin and a done event for
// every request. It has the highest precedence so that it brackets every
// other middleware, and it logs the done event on every exit path.
func Logging(logger observability.Logger) pipeline.Middleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &loggingMiddleware{logger: logger}
}

func (m *loggingMiddleware) Name() string { return NameLogging }
func (m *loggingMiddleware) Order() int   { return OrderLogging }

func (m *loggingMiddleware) Intercept(
	rc *pipeline.RequestContext,
	next pipeline.Handler,
) (resp *pipeline.Response, err error) {
	r := rc.Request
	m.logger.WithContext(rc.Context()).Info("request begin",
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
		observability.String("remote_addr", r.RemoteAddr),
	)

	completed := false
	defer func() {
		m.logDone(rc, resp, err, completed)
	}()

	resp, err = next.Serve(rc)
	completed = true
	return resp, err
}

func (m *loggingMiddleware) logDone(rc *pipeline.RequestContext, resp *pipeline.Response, err error, completed bool) {
	target := rc.Target()
	if target == "" {
		target = unknownTarget
	}

	// rc.Context() carries the span ids set by inner middlewares.
	logger := m.logger.WithContext(rc.Context())
	fields := []observability.Field{
		observability.String("method", rc.Request.Method),
		observability.String("path", rc.Request.URL.Path),
		observability.String("target", target),
		observability.String("route", rc.RouteID()),
		observability.Duration("duration", rc.Elapsed()),
	}

	switch {
	case !completed:
		fields = append(fields,
			observability.Int("status", util.HTTPStatus(util.KindInternal)),
			observability.String("kind", util.KindInternal.String()),
			observability.Bool("panic", true),
		)
		logger.Error("request done", fields...)
	case err != nil:
		kind := util.KindOf(err)
		fields = append(fields,
			observability.Int("status", util.HTTPStatus(kind)),
			observability.String("kind", kind.String()),
			observability.Error(err),
		)
		logger.Warn("request done", fields...)
	default:
		fields = append(fields, observability.Int("status", statusOf(resp, nil)))
		logger.Info("request done", fields...)
	}
}
