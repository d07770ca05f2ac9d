// Package util provides shared types for the gateway core.
//
// # Error Conventions
//
// Errors follow one pattern across all packages:
//
//   - Sentinel errors (errors.New) for stable conditions checked with
//     errors.Is(). Example: ErrUpstreamTimeout.
//   - Structured error types that carry request-level detail (route id,
//     target, attempts). Each implements Error(), Unwrap() when it wraps,
//     and Is() so that errors.Is() reaches the matching sentinel.
//   - fmt.Errorf with %w for ad-hoc wrapping.
//
// KindOf maps any error onto the gateway error taxonomy. Errors outside the
// taxonomy classify as KindInternal.
//
// # Context Helpers
//
//	ctx = util.ContextWithRequestID(ctx, "req-123")
//	requestID := util.RequestIDFromContext(ctx)
package util
