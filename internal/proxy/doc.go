// Package proxy forwards matched requests to their upstream target.
//
// The Dispatcher keeps one pooled http.Transport per target, applies a
// single deadline to every attempt of a request, retries a GET or HEAD
// without a body once when the upstream could not be reached, and maps
// failures onto the gateway error taxonomy:
//
//   - our deadline expired: util.KindUpstreamTimeout
//   - connection or transport failure: util.KindUpstreamUnavailable
//   - the caller went away: util.KindClientCanceled
//
// An optional per-target circuit breaker (github.com/sony/gobreaker)
// rejects requests while open without contacting the upstream.
package proxy
