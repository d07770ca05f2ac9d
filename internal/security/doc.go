// Package security provides identifier generation for the gateway.
//
// GenerateUniqueHash returns an opaque URL-safe identifier derived from a
// random UUID. The gateway uses it as the request id when the caller does
// not supply a well-formed X-Request-ID.
package security
