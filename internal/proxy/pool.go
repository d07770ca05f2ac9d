package proxy

import (
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bkr/apigateway/internal/observability"
)

// PoolConfig sizes the per-target connection pools.
type PoolConfig struct {
	// Size bounds idle and active connections per target.
	Size            int
	IdleConnTimeout time.Duration
	DialTimeout     time.Duration
}

// targetPool is the connection pool of one target.
type targetPool struct {
	transport http.RoundTripper
	inFlight  atomic.Int64
}

// Pool holds one transport per upstream target and counts the exchanges
// currently holding a connection.
type Pool struct {
	cfg       PoolConfig
	override  http.RoundTripper
	metrics   *observability.Metrics
	mu        sync.Mutex
	targets   map[string]*targetPool
	totalBusy atomic.Int64
}

// NewPool creates an empty pool. A non-nil override replaces the per-target
// transports, which is useful in tests.
func NewPool(cfg PoolConfig, override http.RoundTripper, metrics *observability.Metrics) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 64
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Pool{
		cfg:      cfg,
		override: override,
		metrics:  metrics,
		targets:  make(map[string]*targetPool),
	}
}

// acquire checks out the transport for target. The returned release must
// be called exactly once when the exchange is finished.
func (p *Pool) acquire(target *url.URL) (http.RoundTripper, func()) {
	key := poolKey(target)
	tp := p.get(key)

	p.metrics.SetPoolInFlight(key, tp.inFlight.Add(1))
	p.totalBusy.Add(1)

	release := func() {
		p.metrics.SetPoolInFlight(key, tp.inFlight.Add(-1))
		p.totalBusy.Add(-1)
	}
	return tp.transport, release
}

func (p *Pool) get(key string) *targetPool {
	p.mu.Lock()
	defer p.mu.Unlock()

	tp, ok := p.targets[key]
	if !ok {
		tp = &targetPool{transport: p.newTransport()}
		p.targets[key] = tp
	}
	return tp
}

func (p *Pool) newTransport() http.RoundTripper {
	if p.override != nil {
		return p.override
	}

	dialer := &net.Dialer{
		Timeout:   p.cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          p.cfg.Size,
		MaxIdleConnsPerHost:   p.cfg.Size,
		MaxConnsPerHost:       p.cfg.Size,
		IdleConnTimeout:       p.cfg.IdleConnTimeout,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
}

// InFlight returns the number of exchanges currently checked out across
// all targets.
func (p *Pool) InFlight() int64 {
	return p.totalBusy.Load()
}

// InFlightFor returns the number of exchanges checked out for target.
func (p *Pool) InFlightFor(target *url.URL) int64 {
	p.mu.Lock()
	tp, ok := p.targets[poolKey(target)]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	return tp.inFlight.Load()
}

// Close drops idle connections of every target.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, tp := range p.targets {
		if t, ok := tp.transport.(interface{ CloseIdleConnections() }); ok {
			t.CloseIdleConnections()
		}
	}
}

func poolKey(target *url.URL) string {
	return target.Scheme + "://" + target.Host
}
