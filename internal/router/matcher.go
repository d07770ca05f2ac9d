package router

import (
	"net/http"
	"sort"
	"strings"
)

// Matcher type names.
const (
	MatcherTypePrefixSet  = "prefix_set"
	MatcherTypeComplement = "complement"
	MatcherTypeMethod     = "method"
	MatcherTypeHeader     = "header"
	MatcherTypeExpression = "expression"
)

// Matcher is a pure predicate over the request line and headers.
// Implementations must be safe for concurrent use.
type Matcher interface {
	Matches(method, path string, header http.Header) bool
	Type() string
}

// PrefixSetMatcher matches a path that starts with any of its prefixes.
type PrefixSetMatcher struct {
	prefixes []string
}

// NewPrefixSetMatcher creates a prefix set matcher.
func NewPrefixSetMatcher(prefixes ...string) *PrefixSetMatcher {
	return &PrefixSetMatcher{prefixes: append([]string(nil), prefixes...)}
}

// Matches implements Matcher.
func (m *PrefixSetMatcher) Matches(_, path string, _ http.Header) bool {
	return hasAnyPrefix(path, m.prefixes)
}

// Type implements Matcher.
func (m *PrefixSetMatcher) Type() string {
	return MatcherTypePrefixSet
}

// Prefixes returns a copy of the configured prefixes.
func (m *PrefixSetMatcher) Prefixes() []string {
	return append([]string(nil), m.prefixes...)
}

// ComplementMatcher matches a path under base that matches none of the
// excluded prefixes.
type ComplementMatcher struct {
	base     string
	excluded []string
}

// NewComplementMatcher creates a complement matcher.
func NewComplementMatcher(base string, excluded ...string) *ComplementMatcher {
	return &ComplementMatcher{
		base:     base,
		excluded: append([]string(nil), excluded...),
	}
}

// Matches implements Matcher.
func (m *ComplementMatcher) Matches(_, path string, _ http.Header) bool {
	return strings.HasPrefix(path, m.base) && !hasAnyPrefix(path, m.excluded)
}

// Type implements Matcher.
func (m *ComplementMatcher) Type() string {
	return MatcherTypeComplement
}

// Base returns the base prefix.
func (m *ComplementMatcher) Base() string {
	return m.base
}

// Excluded returns a copy of the excluded prefixes.
func (m *ComplementMatcher) Excluded() []string {
	return append([]string(nil), m.excluded...)
}

// MethodMatcher restricts an inner matcher to a set of HTTP methods.
type MethodMatcher struct {
	inner   Matcher
	methods map[string]struct{}
}

// NewMethodMatcher creates a method matcher. Method names are compared
// case-insensitively. A nil inner matcher accepts every path.
func NewMethodMatcher(inner Matcher, methods ...string) *MethodMatcher {
	set := make(map[string]struct{}, len(methods))
	for _, method := range methods {
		set[strings.ToUpper(method)] = struct{}{}
	}
	return &MethodMatcher{inner: inner, methods: set}
}

// Matches implements Matcher.
func (m *MethodMatcher) Matches(method, path string, header http.Header) bool {
	if _, ok := m.methods[strings.ToUpper(method)]; !ok {
		return false
	}
	return m.inner == nil || m.inner.Matches(method, path, header)
}

// Type implements Matcher.
func (m *MethodMatcher) Type() string {
	return MatcherTypeMethod
}

// Methods returns the accepted methods in sorted order.
func (m *MethodMatcher) Methods() []string {
	out := make([]string, 0, len(m.methods))
	for method := range m.methods {
		out = append(out, method)
	}
	sort.Strings(out)
	return out
}

// HeaderMatcher restricts an inner matcher to requests carrying exact
// header values.
type HeaderMatcher struct {
	inner   Matcher
	headers map[string]string
}

// NewHeaderMatcher creates a header matcher. Names are canonicalized;
// values are compared exactly. A nil inner matcher accepts every path.
func NewHeaderMatcher(inner Matcher, headers map[string]string) *HeaderMatcher {
	canonical := make(map[string]string, len(headers))
	for name, value := range headers {
		canonical[http.CanonicalHeaderKey(name)] = value
	}
	return &HeaderMatcher{inner: inner, headers: canonical}
}

// Matches implements Matcher.
func (m *HeaderMatcher) Matches(method, path string, header http.Header) bool {
	for name, want := range m.headers {
		if header.Get(name) != want {
			return false
		}
	}
	return m.inner == nil || m.inner.Matches(method, path, header)
}

// Type implements Matcher.
func (m *HeaderMatcher) Type() string {
	return MatcherTypeHeader
}

// hasAnyPrefix reports whether s starts with one of prefixes.
func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
