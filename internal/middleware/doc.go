// Package middleware provides the pipeline middlewares of the API gateway.
//
// Every middleware implements pipeline.Middleware and is ordered by its
// Order value. Lower values run earlier and wrap the rest of the chain:
//
//   - Logging: request begin/done events (outermost)
//   - Tracing: OpenTelemetry server span with W3C propagation
//   - RequestMetrics: Prometheus request counters and latency
//   - RateLimit: global token bucket, 429 with Retry-After
//   - Auth: bearer token validation through auth.TokenValidator
//
// # Usage
//
//	chain := pipeline.NewChain(
//	    middleware.Logging(logger),
//	    middleware.Auth(validator, middleware.WithAuthMetrics(metrics)),
//	)
//	resp, err := chain.Run(rc, dispatchHandler)
package middleware
