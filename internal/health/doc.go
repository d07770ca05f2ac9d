// Package health serves the gateway's liveness, readiness and health
// endpoints on the admin listener.
//
// Liveness only reports that the process is serving. Readiness runs every
// registered Check concurrently under a timeout and fails while the
// gateway is draining.
package health
