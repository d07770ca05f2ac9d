package proxy

import "errors"

// Sentinel errors for dispatch.
var (
	// ErrCircuitOpen indicates the target's circuit breaker rejected the attempt.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrNoTarget indicates a route without an upstream target.
	ErrNoTarget = errors.New("route has no target")
)
