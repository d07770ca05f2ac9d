package middleware

import (
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/bkr/apigateway/internal/observability"
	"github.com/bkr/apigateway/internal/pipeline"
)

// limiterScope labels rejections; the bucket is shared by all routes.
const limiterScope = "global"

// RateLimiter is a global token bucket.
type RateLimiter struct {
	limiter    *rate.Limiter
	retryAfter string
	metrics    *observability.Metrics
	logger     observability.Logger
}

// RateLimiterOption is a functional option for configuring the rate limiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger for the rate limiter.
func WithRateLimiterLogger(logger observability.Logger) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.logger = logger
	}
}

// WithRateLimiterMetrics records rejections.
func WithRateLimiterMetrics(m *observability.Metrics) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.metrics = m
	}
}

// NewRateLimiter creates a limiter admitting rps requests per second with
// the given burst.
func NewRateLimiter(rps float64, burst int, opts ...RateLimiterOption) *RateLimiter {
	if burst < 1 {
		burst = 1
	}

	retryAfter := 1
	if rps > 0 && rps < 1 {
		retryAfter = int(math.Ceil(1 / rps))
	}

	rl := &RateLimiter{
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		retryAfter: strconv.Itoa(retryAfter),
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// Allow reports whether a request may proceed now.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// RateLimit returns a middleware that short-circuits with 429 when rl is
// exhausted.
func RateLimit(rl *RateLimiter) pipeline.Middleware {
	return pipeline.NewMiddleware(NameRateLimit, OrderRateLimit,
		func(rc *pipeline.RequestContext, next pipeline.Handler) (*pipeline.Response, error) {
			if rl.Allow() {
				return next.Serve(rc)
			}

			rl.metrics.RecordRateLimitHit(limiterScope)
			rl.logger.WithContext(rc.Context()).Warn("rate limit exceeded",
				observability.String("path", rc.Request.URL.Path),
				observability.String("remote_addr", rc.Request.RemoteAddr),
			)

			resp := pipeline.BytesResponse(http.StatusTooManyRequests, ContentTypeJSON, []byte(ErrRateLimitExceeded))
			resp.Header.Set(HeaderRetryAfter, rl.retryAfter)
			return resp, nil
		})
}
