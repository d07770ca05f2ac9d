// Package router provides the route table and request matchers.
//
// A Table holds routes ordered by priority (highest first) and then by
// registration order. Match returns the first route whose Matcher accepts
// the request, so at most one route is ever selected. Tables are built once
// at startup, frozen, and then shared by all request goroutines without
// locking.
//
// Paths are normalized once with NormalizePath before matching; matchers
// themselves compare bytes and never normalize.
package router
