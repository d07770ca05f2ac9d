package proxy

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkr/apigateway/internal/observability"
)

func TestPool_TransportPerTarget(t *testing.T) {
	t.Parallel()

	p := NewPool(PoolConfig{Size: 4, IdleConnTimeout: time.Second, DialTimeout: time.Second}, nil, nil)
	a := mustURL(t, "http://a.local:9001")
	a2 := mustURL(t, "http://a.local:9001/base")
	b := mustURL(t, "http://b.local:9002")

	rtA, releaseA := p.acquire(a)
	rtA2, releaseA2 := p.acquire(a2)
	rtB, releaseB := p.acquire(b)

	assert.Same(t, rtA, rtA2)
	assert.NotSame(t, rtA, rtB)

	transport, ok := rtA.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 4, transport.MaxConnsPerHost)
	assert.Equal(t, time.Second, transport.IdleConnTimeout)

	assert.Equal(t, int64(3), p.InFlight())
	assert.Equal(t, int64(2), p.InFlightFor(a))

	releaseA()
	releaseA2()
	releaseB()
	assert.Zero(t, p.InFlight())
	assert.Zero(t, p.InFlightFor(b))
	assert.Zero(t, p.InFlightFor(mustURL(t, "http://unknown.local")))

	p.Close()
}

func TestPool_Metrics(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("pool_metrics")
	p := NewPool(PoolConfig{}, nil, metrics)

	_, release := p.acquire(mustURL(t, "http://a.local"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PoolInFlight().WithLabelValues("http://a.local")))
	release()
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.PoolInFlight().WithLabelValues("http://a.local")))
}
