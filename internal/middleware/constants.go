package middleware

import (
	"net/http"
	"strings"

	"github.com/bkr/apigateway/internal/pipeline"
	"github.com/bkr/apigateway/internal/util"
)

// Middleware order values.
const (
	OrderLogging        = pipeline.OrderHighestPrecedence
	OrderTracing        = -300
	OrderRequestMetrics = -200
	OrderRateLimit      = -100
	OrderAuth           = 0
)

// Middleware names.
const (
	NameLogging        = "logging"
	NameTracing        = "tracing"
	NameRequestMetrics = "request_metrics"
	NameRateLimit      = "rate_limit"
	NameAuth           = "auth"
)

// unknownTarget is logged when no upstream target was resolved.
const unknownTarget = "unknown"

// HTTP header constants.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderRetryAfter is the Retry-After header name.
	HeaderRetryAfter = "Retry-After"
)

// ContentTypeJSON is the JSON content type.
const ContentTypeJSON = "application/json"

// ErrRateLimitExceeded is the body returned on rate limit rejection.
const ErrRateLimitExceeded = `{"error":"rate limit exceeded"}`

// methodLabel bounds the method label to the standard methods.
func methodLabel(method string) string {
	switch m := strings.ToUpper(method); m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
		http.MethodConnect, http.MethodTrace:
		return m
	default:
		return "OTHER"
	}
}

// statusOf returns the status a response or error resolves to.
func statusOf(resp *pipeline.Response, err error) int {
	if err == nil && resp != nil {
		return resp.StatusCode
	}
	return util.HTTPStatusOf(err)
}
