package middleware

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkr/apigateway/internal/observability"
)

func TestRateLimit_ShortCircuits(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("mw_ratelimit")
	rl := NewRateLimiter(0.5, 2, WithRateLimiterMetrics(metrics))
	mw := RateLimit(rl)
	assert.Equal(t, OrderRateLimit, mw.Order())

	next := &countingHandler{}
	for i := 0; i < 2; i++ {
		resp, err := mw.Intercept(newTestContext(t, http.MethodGet, "/"), next)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Close()
	}

	resp, err := mw.Intercept(newTestContext(t, http.MethodGet, "/"), next)
	require.NoError(t, err)
	defer resp.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get(HeaderRetryAfter))
	assert.Equal(t, ContentTypeJSON, resp.Header.Get(HeaderContentType))
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RateLimitHits().WithLabelValues(limiterScope)))
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(100, 0)
	assert.True(t, rl.Allow())
	assert.Equal(t, "1", rl.retryAfter)
}
