package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkr/apigateway/internal/config"
	"github.com/bkr/apigateway/internal/gateway"
	"github.com/bkr/apigateway/internal/health"
	"github.com/bkr/apigateway/internal/observability"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testAppConfig(t *testing.T, target string, mr *miniredis.Miniredis) *config.GatewayConfig {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Listen.Address = "127.0.0.1:0"
	cfg.Listen.ShutdownTimeout = config.Duration(5 * time.Second)
	cfg.Admin.Address = "127.0.0.1:0"
	for i := range cfg.Routes {
		cfg.Routes[i].Target = target
	}
	cfg.Auth.Enabled = true
	cfg.Auth.HMACSecret = testSecret
	cfg.Auth.SkipPaths = []string{"/api/v1/public/"}
	if mr != nil {
		cfg.Auth.Revocation.Enabled = true
		cfg.Auth.Revocation.RedisAddr = mr.Addr()
	}
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000

	require.NoError(t, config.ValidateConfig(cfg))
	return cfg
}

func signToken(t *testing.T, jti string) string {
	t.Helper()

	tok, err := jwt.NewBuilder().
		Subject("alice").
		JwtID(jti).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func doGet(t *testing.T, url, token string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestApplication_EndToEnd(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "upstream:"+r.URL.Path)
	}))
	t.Cleanup(upstream.Close)
	mr := miniredis.RunT(t)

	cfg := testAppConfig(t, upstream.URL, mr)
	app, err := newApplication(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.run(ctx) }()

	require.Eventually(t, app.gateway.IsRunning, 5*time.Second, 10*time.Millisecond)

	public := "http://" + app.gateway.Addr().String()
	admin := "http://" + app.gateway.AdminAddr().String()
	token := signToken(t, "token-1")

	status, body := doGet(t, public+"/api/v1/ord/42", token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "upstream:/api/v1/ord/42", body)

	status, _ = doGet(t, public+"/api/v1/ord/42", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = doGet(t, public+"/api/v1/public/info", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "upstream:/api/v1/public/info", body)

	status, _ = doGet(t, public+"/elsewhere", token)
	assert.Equal(t, http.StatusNotFound, status)

	require.NoError(t, mr.Set(config.DefaultRevocationPrefix+"token-1", "1"))
	status, _ = doGet(t, public+"/api/v1/ord/42", token)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = doGet(t, admin+health.PathReady, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "revocation_store")

	status, body = doGet(t, admin+cfg.Admin.MetricsPath, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "apigateway_requests_total")
	assert.Contains(t, body, "apigateway_auth_failures_total")

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("gateway did not stop")
	}

	assert.Equal(t, gateway.StateStopped, app.gateway.State())
	assert.True(t, app.checker.Draining())
}

func TestNewApplication_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unreachable revocation store", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		cfg := testAppConfig(t, "http://127.0.0.1:9", mr)
		mr.Close()

		_, err := newApplication(context.Background(), cfg, observability.NopLogger())
		require.Error(t, err)
	})

	t.Run("invalid route table", func(t *testing.T) {
		t.Parallel()

		cfg := testAppConfig(t, "http://127.0.0.1:9", nil)
		cfg.Routes[1].Match.ExcludeRoutes = []string{"missing_route"}

		_, err := newApplication(context.Background(), cfg, observability.NopLogger())
		require.Error(t, err)
	})
}

func TestApplication_RunFailsWhenAddressInUse(t *testing.T) {
	t.Parallel()

	first, err := newApplication(context.Background(), testAppConfig(t, "http://127.0.0.1:9", nil), observability.NopLogger())
	require.NoError(t, err)
	require.NoError(t, first.gateway.Start(context.Background()))
	t.Cleanup(func() { _ = first.shutdown() })

	cfg := testAppConfig(t, "http://127.0.0.1:9", nil)
	cfg.Listen.Address = first.gateway.Addr().String()
	second, err := newApplication(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)

	require.Error(t, second.run(context.Background()))
}

func TestDispatcherConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig().Upstream
	disabled := false
	cfg.Retry = &disabled
	cfg.CircuitBreaker.Enabled = true

	got := dispatcherConfig(cfg)

	assert.Equal(t, cfg.Timeout.Duration(), got.Timeout)
	assert.False(t, got.Retry)
	assert.Equal(t, cfg.PoolSize, got.Pool.Size)
	assert.True(t, got.CircuitBreaker.Enabled)
	assert.Equal(t, cfg.CircuitBreaker.FailureThreshold, got.CircuitBreaker.FailureThreshold)
}
