package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkr/apigateway/internal/auth"
	"github.com/bkr/apigateway/internal/config"
	"github.com/bkr/apigateway/internal/middleware"
	"github.com/bkr/apigateway/internal/pipeline"
	"github.com/bkr/apigateway/internal/proxy"
	"github.com/bkr/apigateway/internal/router"
	"github.com/bkr/apigateway/internal/util"
)

const testToken = "valid-token"

type upstream struct {
	name   string
	hits   atomic.Int32
	server *httptest.Server
}

func newUpstream(t *testing.T, name string) *upstream {
	t.Helper()

	u := &upstream{name: name}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		w.Header().Set("X-Upstream", name)
		w.Header().Set("X-Seen-Path", r.URL.Path)
		w.Header().Set("X-Seen-Request-ID", r.Header.Get(headerRequestID))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, name)
	}))
	t.Cleanup(u.server.Close)

	return u
}

func testRoutes(orderTarget, defaultTarget string) []config.Route {
	return []config.Route{
		{
			ID:       config.OrderRouteID,
			Priority: 100,
			Target:   orderTarget,
			Match:    config.MatchConfig{Prefixes: append([]string(nil), config.OrderPrefixes...)},
		},
		{
			ID:     config.DefaultRouteID,
			Target: defaultTarget,
			Match: config.MatchConfig{
				Base:          config.DefaultRouteBase,
				ExcludeRoutes: []string{config.OrderRouteID},
			},
		},
	}
}

func tokenValidator() auth.TokenValidator {
	return auth.ValidatorFunc(func(_ context.Context, token string) (*auth.Claims, error) {
		if token != testToken {
			return nil, auth.ErrInvalidSignature
		}
		return &auth.Claims{Subject: "alice"}, nil
	})
}

func newTestServer(t *testing.T, routes []config.Route, dcfg proxy.Config, opts ...ServerOption) *Server {
	t.Helper()

	table, err := router.Build(routes)
	require.NoError(t, err)

	dispatcher := proxy.NewDispatcher(dcfg)
	t.Cleanup(dispatcher.Close)

	opts = append([]ServerOption{WithMiddlewares(middleware.Auth(tokenValidator()))}, opts...)
	srv, err := NewServer(table, dispatcher, opts...)
	require.NoError(t, err)

	return srv
}

func authorized(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func TestServer_Routing(t *testing.T) {
	t.Parallel()

	order := newUpstream(t, "order")
	def := newUpstream(t, "default")
	srv := newTestServer(t, testRoutes(order.server.URL, def.server.URL), proxy.Config{Timeout: time.Second})

	tests := []struct {
		name         string
		path         string
		wantStatus   int
		wantUpstream string
		wantPath     string
	}{
		{name: "order prefix", path: "/api/v1/ord/123", wantStatus: http.StatusOK, wantUpstream: "order", wantPath: "/api/v1/ord/123"},
		{name: "oms prefix", path: "/api/v1/oms/status", wantStatus: http.StatusOK, wantUpstream: "order", wantPath: "/api/v1/oms/status"},
		{name: "default complement", path: "/api/v1/users/7", wantStatus: http.StatusOK, wantUpstream: "default", wantPath: "/api/v1/users/7"},
		{name: "prefix is case sensitive", path: "/api/v1/ORD/1", wantStatus: http.StatusOK, wantUpstream: "default", wantPath: "/api/v1/ORD/1"},
		{name: "dot segments normalized", path: "/api/v1/users/../ord/9", wantStatus: http.StatusOK, wantUpstream: "order", wantPath: "/api/v1/ord/9"},
		{name: "outside base", path: "/health", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := authorized(httptest.NewRequest(http.MethodGet, "http://gateway.local/", nil))
			req.URL.Path = tt.path
			rec := httptest.NewRecorder()

			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantUpstream == "" {
				assert.Equal(t, bodyNotFound, rec.Body.String())
				assert.Equal(t, contentTypeJSON, rec.Header().Get(headerContentType))
				return
			}
			assert.Equal(t, tt.wantUpstream, rec.Header().Get("X-Upstream"))
			assert.Equal(t, tt.wantPath, rec.Header().Get("X-Seen-Path"))
			assert.Equal(t, tt.wantUpstream, rec.Body.String())
		})
	}
}

func TestServer_UnauthorizedNeverReachesUpstream(t *testing.T) {
	t.Parallel()

	order := newUpstream(t, "order")
	def := newUpstream(t, "default")
	srv := newTestServer(t, testRoutes(order.server.URL, def.server.URL), proxy.Config{Timeout: time.Second})

	for _, header := range []string{"", "Basic abc", "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ord/1", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, bearerChallenge, rec.Header().Get(headerWWWAuth))
		assert.Equal(t, bodyUnauthorized, rec.Body.String())
	}

	assert.Zero(t, order.hits.Load())
	assert.Zero(t, def.hits.Load())
}

func TestServer_UpstreamTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(release) })

	srv := newTestServer(t, testRoutes(slow.URL, slow.URL), proxy.Config{Timeout: 50 * time.Millisecond})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authorized(httptest.NewRequest(http.MethodGet, "/api/v1/ord/1", nil)))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, bodyTimeout, rec.Body.String())
}

func TestServer_UpstreamUnavailable(t *testing.T) {
	t.Parallel()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	srv := newTestServer(t, testRoutes(closedURL, closedURL), proxy.Config{Timeout: time.Second, Retry: true})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authorized(httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, bodyBadGateway, rec.Body.String())
}

func TestServer_UpstreamStatusPassesThrough(t *testing.T) {
	t.Parallel()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "busy")
	}))
	t.Cleanup(failing.Close)

	srv := newTestServer(t, testRoutes(failing.URL, failing.URL), proxy.Config{Timeout: time.Second})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authorized(httptest.NewRequest(http.MethodGet, "/api/v1/ord/1", nil)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "busy", rec.Body.String())
}

func TestServer_RequestID(t *testing.T) {
	t.Parallel()

	order := newUpstream(t, "order")
	srv := newTestServer(t, testRoutes(order.server.URL, order.server.URL), proxy.Config{Timeout: time.Second})

	t.Run("propagates well formed id", func(t *testing.T) {
		t.Parallel()

		req := authorized(httptest.NewRequest(http.MethodGet, "/api/v1/ord/1", nil))
		req.Header.Set(headerRequestID, "client-id-123")
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, req)

		assert.Equal(t, "client-id-123", rec.Header().Get(headerRequestID))
		assert.Equal(t, "client-id-123", rec.Header().Get("X-Seen-Request-ID"))
	})

	t.Run("generates id when absent", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, authorized(httptest.NewRequest(http.MethodGet, "/api/v1/ord/1", nil)))

		id := rec.Header().Get(headerRequestID)
		assert.Len(t, id, 43)
		assert.Equal(t, id, rec.Header().Get("X-Seen-Request-ID"))
	})

	t.Run("replaces malformed id on errors too", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
		req.Header.Set(headerRequestID, "bad id\twith spaces")
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, authorized(req))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Len(t, rec.Header().Get(headerRequestID), 43)
	})
}

type dispatcherFunc func(rc *pipeline.RequestContext, route *router.Route) (*pipeline.Response, error)

func (f dispatcherFunc) Dispatch(rc *pipeline.RequestContext, route *router.Route) (*pipeline.Response, error) {
	return f(rc, route)
}

func newStubServer(t *testing.T, d Dispatcher) *Server {
	t.Helper()

	table, err := router.Build(testRoutes("http://order.internal", "http://default.internal"))
	require.NoError(t, err)

	srv, err := NewServer(table, d)
	require.NoError(t, err)
	return srv
}

func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		dispatch   dispatcherFunc
		wantStatus int
		wantBody   string
	}{
		{
			name: "panic becomes bad gateway",
			dispatch: func(*pipeline.RequestContext, *router.Route) (*pipeline.Response, error) {
				panic("boom")
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   bodyBadGateway,
		},
		{
			name: "nil response is internal",
			dispatch: func(*pipeline.RequestContext, *router.Route) (*pipeline.Response, error) {
				return nil, nil
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   bodyBadGateway,
		},
		{
			name: "unclassified error is internal",
			dispatch: func(*pipeline.RequestContext, *router.Route) (*pipeline.Response, error) {
				return nil, errors.New("unexpected")
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   bodyBadGateway,
		},
		{
			name: "client canceled",
			dispatch: func(_ *pipeline.RequestContext, route *router.Route) (*pipeline.Response, error) {
				return nil, util.NewUpstreamError(util.KindClientCanceled, route.ID, route.Target.String(), 1, context.Canceled)
			},
			wantStatus: util.StatusClientClosedRequest,
			wantBody:   bodyClientClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newStubServer(t, tt.dispatch)
			rec := httptest.NewRecorder()

			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ord/1", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestServer_AbortHandlerPanicPropagates(t *testing.T) {
	t.Parallel()

	srv := newStubServer(t, dispatcherFunc(func(*pipeline.RequestContext, *router.Route) (*pipeline.Response, error) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ord/1", nil))
	})
}

func TestServer_ForwardsNormalizedPathToDispatcher(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 1)
	srv := newStubServer(t, dispatcherFunc(func(rc *pipeline.RequestContext, route *router.Route) (*pipeline.Response, error) {
		seen <- route.ID + " " + rc.Request.URL.Path
		return pipeline.BytesResponse(http.StatusOK, "text/plain", []byte("ok")), nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/api/v1//oms/./x/"
	originalURL := req.URL
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.OrderRouteID+" /api/v1/oms/x/", <-seen)
	assert.Equal(t, "/api/v1//oms/./x/", originalURL.Path)
	assert.Same(t, originalURL, req.URL)
}

func TestServer_EncodedPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "encoded slash kept when already normal", target: "/api/v1/ord/a%2Fb", want: "/api/v1/ord/a%2Fb"},
		{name: "encoding dropped when path normalized", target: "/api/v1//ord/a%2Fb", want: "/api/v1/ord/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			seen := make(chan string, 1)
			srv := newStubServer(t, dispatcherFunc(func(rc *pipeline.RequestContext, _ *router.Route) (*pipeline.Response, error) {
				seen <- rc.Request.URL.EscapedPath()
				return pipeline.BytesResponse(http.StatusOK, "text/plain", []byte("ok")), nil
			}))

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, <-seen)
		})
	}
}

func TestNewServer_Validation(t *testing.T) {
	t.Parallel()

	table, err := router.Build(testRoutes("http://a", "http://b"))
	require.NoError(t, err)

	_, err = NewServer(nil, dispatcherFunc(nil))
	require.Error(t, err)

	_, err = NewServer(table, nil)
	require.Error(t, err)
}

func TestServer_MiddlewareOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	record := func(name string, order int) pipeline.Middleware {
		return pipeline.NewMiddleware(name, order, func(rc *pipeline.RequestContext, next pipeline.Handler) (*pipeline.Response, error) {
			calls = append(calls, name)
			return next.Serve(rc)
		})
	}

	table, err := router.Build(testRoutes("http://a", "http://b"))
	require.NoError(t, err)

	srv, err := NewServer(table,
		dispatcherFunc(func(*pipeline.RequestContext, *router.Route) (*pipeline.Response, error) {
			calls = append(calls, "dispatch")
			return pipeline.BytesResponse(http.StatusNoContent, "", nil), nil
		}),
		WithMiddlewares(record("inner", 10), record("outer", -10)),
	)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/x", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"outer", "inner", "dispatch"}, calls)
}
