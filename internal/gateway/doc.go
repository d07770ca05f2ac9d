// Package gateway hosts the request pipeline behind HTTP listeners.
//
// Server is the http.Handler: it builds the request context, runs the
// middleware chain around the routing and dispatch step, and maps errors
// onto fixed status codes and bodies. Gateway owns the listener lifecycle,
// serving Server through a gin engine's NoRoute hook, plus an optional
// admin listener for metrics and health endpoints.
package gateway
