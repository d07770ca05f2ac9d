// Package pipeline defines the per-request context, the response type and
// the continuation-passing middleware chain that wraps dispatch.
//
// A Middleware receives the request context and the next Handler. It may
// call next and inspect or replace the response, return its own response
// without calling next, or return an error. Middlewares run in ascending
// Order; the first one wraps all others.
//
//	chain := pipeline.NewChain(logging, auth)
//	resp, err := chain.Run(rc, pipeline.HandlerFunc(dispatch))
package pipeline
