package middleware

import (
	"strings"

	"github.com/bkr/apigateway/internal/auth"
	"github.com/bkr/apigateway/internal/observability"
	"github.com/bkr/apigateway/internal/pipeline"
	"github.com/bkr/apigateway/internal/router"
	"github.com/bkr/apigateway/internal/util"
)

type authMiddleware struct {
	validator auth.TokenValidator
	metrics   *observability.Metrics
	logger    observability.Logger
	skipPaths []string
}

// AuthOption is a functional option for the Auth middleware.
type AuthOption func(*authMiddleware)

// WithAuthMetrics records rejected credentials.
func WithAuthMetrics(m *observability.Metrics) AuthOption {
	return func(a *authMiddleware) {
		a.metrics = m
	}
}

// WithAuthLogger sets the logger.
func WithAuthLogger(logger observability.Logger) AuthOption {
	return func(a *authMiddleware) {
		a.logger = logger
	}
}

// WithSkipPaths exempts requests whose normalized path starts with any of
// the prefixes.
func WithSkipPaths(prefixes ...string) AuthOption {
	return func(a *authMiddleware) {
		a.skipPaths = append(a.skipPaths, prefixes...)
	}
}

// Auth returns a middleware that requires a valid bearer token. A request
// without one is rejected with util.UnauthorizedError and never reaches
// next. On success the subject and claims are stored in the request
// context attributes.
func Auth(validator auth.TokenValidator, opts ...AuthOption) pipeline.Middleware {
	a := &authMiddleware{
		validator: validator,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *authMiddleware) Name() string { return NameAuth }
func (a *authMiddleware) Order() int   { return OrderAuth }

func (a *authMiddleware) Intercept(rc *pipeline.RequestContext, next pipeline.Handler) (*pipeline.Response, error) {
	if a.skipped(rc) {
		return next.Serve(rc)
	}

	token, err := auth.ExtractBearer(rc.Request.Header)
	if err != nil {
		return nil, a.reject(rc, err)
	}

	claims, err := a.validator.Validate(rc.Context(), token)
	if err != nil {
		return nil, a.reject(rc, err)
	}

	if claims != nil {
		rc.Set(pipeline.AttrSubject, claims.Subject)
		rc.Set(pipeline.AttrClaims, claims)
	}

	return next.Serve(rc)
}

func (a *authMiddleware) skipped(rc *pipeline.RequestContext) bool {
	if len(a.skipPaths) == 0 {
		return false
	}
	p := router.NormalizePath(rc.Request.URL.Path)
	for _, prefix := range a.skipPaths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (a *authMiddleware) reject(rc *pipeline.RequestContext, cause error) error {
	reason := auth.Reason(cause)
	a.metrics.RecordAuthFailure(reason)
	a.logger.WithContext(rc.Context()).Debug("request rejected",
		observability.String("reason", reason),
		observability.Error(cause),
	)
	return util.NewUnauthorizedError(reason, cause)
}
