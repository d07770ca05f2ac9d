package router

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixSetMatcher(t *testing.T) {
	t.Parallel()

	m := NewPrefixSetMatcher("/api/v1/ord/", "/api/v1/oms/")

	tests := []struct {
		path string
		want bool
	}{
		{"/api/v1/ord/", true},
		{"/api/v1/ord/123", true},
		{"/api/v1/oms/x/y", true},
		{"/api/v1/ord", false},
		{"/api/v1/orders", false},
		{"/API/v1/ord/1", false},
		{"/api/v1/users", false},
		{"/", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, m.Matches(http.MethodGet, tt.path, nil))
		})
	}

	assert.Equal(t, MatcherTypePrefixSet, m.Type())
	assert.Equal(t, []string{"/api/v1/ord/", "/api/v1/oms/"}, m.Prefixes())
}

func TestComplementMatcher(t *testing.T) {
	t.Parallel()

	m := NewComplementMatcher("/api/v1/", "/api/v1/ord/", "/api/v1/oms/")

	tests := []struct {
		path string
		want bool
	}{
		{"/api/v1/users", true},
		{"/api/v1/", true},
		{"/api/v1/ordx", true},
		{"/api/v1/ord/1", false},
		{"/api/v1/oms/", false},
		{"/api/v2/users", false},
		{"/health", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, m.Matches(http.MethodPost, tt.path, nil))
		})
	}

	assert.Equal(t, MatcherTypeComplement, m.Type())
	assert.Equal(t, "/api/v1/", m.Base())
	assert.Len(t, m.Excluded(), 2)
}

func TestMethodMatcher(t *testing.T) {
	t.Parallel()

	m := NewMethodMatcher(NewPrefixSetMatcher("/api/"), "get", "HEAD")

	assert.True(t, m.Matches("GET", "/api/x", nil))
	assert.True(t, m.Matches("head", "/api/x", nil))
	assert.False(t, m.Matches("POST", "/api/x", nil))
	assert.False(t, m.Matches("GET", "/other", nil))
	assert.Equal(t, []string{"GET", "HEAD"}, m.Methods())
	assert.Equal(t, MatcherTypeMethod, m.Type())

	all := NewMethodMatcher(nil, "DELETE")
	assert.True(t, all.Matches("DELETE", "/anything", nil))
}

func TestHeaderMatcher(t *testing.T) {
	t.Parallel()

	m := NewHeaderMatcher(NewPrefixSetMatcher("/api/"), map[string]string{"x-tenant": "acme"})

	h := http.Header{}
	h.Set("X-Tenant", "acme")
	assert.True(t, m.Matches("GET", "/api/x", h))

	h.Set("X-Tenant", "ACME")
	assert.False(t, m.Matches("GET", "/api/x", h))
	assert.False(t, m.Matches("GET", "/api/x", http.Header{}))
	assert.Equal(t, MatcherTypeHeader, m.Type())
}

func TestExpressionMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		expr   string
		method string
		path   string
		header http.Header
		want   bool
	}{
		{
			name:   "method and path",
			expr:   `request.method == "GET" && request.path.startsWith("/api/v1/")`,
			method: "GET",
			path:   "/api/v1/users",
			want:   true,
		},
		{
			name:   "method mismatch",
			expr:   `request.method == "GET"`,
			method: "POST",
			path:   "/",
			want:   false,
		},
		{
			name:   "header present",
			expr:   `request.headers["X-Tenant"] == "acme"`,
			method: "GET",
			path:   "/",
			header: http.Header{"X-Tenant": []string{"acme"}},
			want:   true,
		},
		{
			name:   "missing header is no match",
			expr:   `request.headers["X-Tenant"] == "acme"`,
			method: "GET",
			path:   "/",
			header: http.Header{},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := NewExpressionMatcher(nil, tt.expr)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, m.Matches(tt.method, tt.path, tt.header))
		})
	}
}

func TestExpressionMatcher_Inner(t *testing.T) {
	t.Parallel()

	m, err := NewExpressionMatcher(NewPrefixSetMatcher("/api/"), `request.method == "GET"`)
	assert.NoError(t, err)
	assert.True(t, m.Matches("GET", "/api/x", nil))
	assert.False(t, m.Matches("GET", "/other", nil))
	assert.Equal(t, MatcherTypeExpression, m.Type())
	assert.Equal(t, `request.method == "GET"`, m.Expression())
}

func TestExpressionMatcher_CompileErrors(t *testing.T) {
	t.Parallel()

	_, err := NewExpressionMatcher(nil, `request.method ==`)
	assert.Error(t, err)

	_, err = NewExpressionMatcher(nil, `"not a bool"`)
	assert.Error(t, err)
}
