package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bkr/apigateway/internal/observability"
	"github.com/bkr/apigateway/internal/pipeline"
	"github.com/bkr/apigateway/internal/router"
	"github.com/bkr/apigateway/internal/util"
)

// hopHeaders are stripped in both directions.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Attempt outcome label for a successful exchange.
const outcomeSuccess = "success"

// Config configures the Dispatcher.
type Config struct {
	// Timeout is the default deadline covering all attempts of a request.
	Timeout time.Duration
	// Retry enables the single retry of idempotent requests.
	Retry          bool
	Pool           PoolConfig
	CircuitBreaker BreakerConfig
}

// Dispatcher forwards requests to route targets.
type Dispatcher struct {
	cfg       Config
	logger    observability.Logger
	metrics   *observability.Metrics
	transport http.RoundTripper
	pool      *Pool
	breakers  *breakerSet
}

// Option is a functional option for the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTransport replaces the pooled transports with rt.
func WithTransport(rt http.RoundTripper) Option {
	return func(d *Dispatcher) {
		d.transport = rt
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.pool = NewPool(cfg.Pool, d.transport, d.metrics)
	d.breakers = newBreakerSet(cfg.CircuitBreaker, d.logger, d.metrics)

	return d
}

// InFlight returns the number of upstream exchanges whose response body
// has not been closed yet.
func (d *Dispatcher) InFlight() int64 {
	return d.pool.InFlight()
}

// Pool returns the connection pool.
func (d *Dispatcher) Pool() *Pool {
	return d.pool
}

// Close drops idle upstream connections.
func (d *Dispatcher) Close() {
	d.pool.Close()
}

// Dispatch forwards rc to route's target. The deadline (route override or
// default) covers every attempt. On success the caller owns the returned
// response and must close it; closing it releases the pooled connection.
func (d *Dispatcher) Dispatch(rc *pipeline.RequestContext, route *router.Route) (*pipeline.Response, error) {
	if route == nil || route.Target == nil {
		return nil, util.WrapError(ErrNoTarget, "dispatch")
	}

	target := route.Target.String()
	rc.SetRoute(route.ID, target)

	parent := rc.Context()
	ctx, cancel := d.withDeadline(parent, route)

	maxAttempts := 1
	if d.cfg.Retry && util.IsIdempotentMethod(rc.Request.Method) && util.HasEmptyBody(rc.Request) {
		maxAttempts = 2
	}

	logger := d.logger.WithContext(parent)

	var (
		lastErr  error
		lastKind util.ErrorKind
		attempts int
	)
	for attempts < maxAttempts {
		attempts++

		resp, kind, err := d.attempt(ctx, parent, rc, route)
		if err == nil {
			resp.Body = &releasingBody{ReadCloser: resp.Body, release: cancel}
			return resp, nil
		}

		lastErr, lastKind = err, kind
		if kind != util.KindUpstreamUnavailable || attempts == maxAttempts {
			break
		}

		logger.Debug("retrying upstream request",
			observability.String("route", route.ID),
			observability.String("target", target),
			observability.Error(err),
		)
	}
	cancel()

	d.metrics.RecordUpstreamError(route.ID, lastKind.String())
	logger.Warn("upstream request failed",
		observability.String("route", route.ID),
		observability.String("target", target),
		observability.String("kind", lastKind.String()),
		observability.Int("attempts", attempts),
		observability.Error(lastErr),
	)

	upstreamErr := util.NewUpstreamError(lastKind, route.ID, target, attempts, lastErr)
	if lastKind == util.KindUpstreamTimeout {
		upstreamErr.Timeout = d.timeoutFor(route)
	}
	return nil, upstreamErr
}

// attempt performs one exchange. On failure every acquired resource has
// been released.
func (d *Dispatcher) attempt(
	ctx, parent context.Context,
	rc *pipeline.RequestContext,
	route *router.Route,
) (*pipeline.Response, util.ErrorKind, error) {
	breakerKey := poolKey(route.Target)
	done, err := d.breakers.allow(breakerKey)
	if err != nil {
		d.metrics.RecordUpstreamAttempt(route.ID, "circuit_open", 0)
		return nil, util.KindUpstreamUnavailable, err
	}

	out := d.outboundRequest(ctx, rc, route.Target)

	rt, release := d.pool.acquire(route.Target)
	start := time.Now()
	resp, err := rt.RoundTrip(out)
	if err != nil {
		release()
		kind := classify(ctx, parent)
		done(kind == util.KindClientCanceled)
		d.metrics.RecordUpstreamAttempt(route.ID, kind.String(), time.Since(start))
		return nil, kind, err
	}

	done(true)
	d.metrics.RecordUpstreamAttempt(route.ID, outcomeSuccess, time.Since(start))

	header := resp.Header.Clone()
	removeHopHeaders(header)

	body := &releasingBody{ReadCloser: resp.Body, release: release}
	return pipeline.NewResponse(resp.StatusCode, header, body), util.KindNone, nil
}

// classify maps a transport failure to an error kind.
func classify(ctx, parent context.Context) util.ErrorKind {
	switch {
	case parent.Err() != nil:
		return util.KindClientCanceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return util.KindUpstreamTimeout
	default:
		return util.KindUpstreamUnavailable
	}
}

func (d *Dispatcher) timeoutFor(route *router.Route) time.Duration {
	if route.Timeout > 0 {
		return route.Timeout
	}
	return d.cfg.Timeout
}

func (d *Dispatcher) withDeadline(parent context.Context, route *router.Route) (context.Context, context.CancelFunc) {
	if timeout := d.timeoutFor(route); timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// outboundRequest builds the upstream request for target.
func (d *Dispatcher) outboundRequest(ctx context.Context, rc *pipeline.RequestContext, target *url.URL) *http.Request {
	in := rc.Request
	out := in.Clone(ctx)
	out.RequestURI = ""
	out.Close = false

	out.URL.Scheme = target.Scheme
	out.URL.Host = target.Host
	out.URL.Path = joinPath(target.Path, in.URL.Path)
	out.URL.RawPath = ""
	if in.URL.RawPath != "" {
		out.URL.RawPath = joinPath(target.EscapedPath(), in.URL.RawPath)
	}
	out.URL.RawQuery = in.URL.RawQuery
	out.Host = target.Host

	if util.HasEmptyBody(in) {
		out.Body = http.NoBody
		out.ContentLength = 0
	}

	removeHopHeaders(out.Header)

	if clientIP, _, err := net.SplitHostPort(in.RemoteAddr); err == nil {
		if prior := in.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		out.Header.Set("X-Forwarded-For", clientIP)
	}
	if in.TLS != nil {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}
	out.Header.Set("X-Forwarded-Host", in.Host)
	out.Header.Set("X-Request-ID", rc.RequestID)

	observability.InjectTraceContext(ctx, out)

	return out
}

// removeHopHeaders deletes hop-by-hop headers, including those named in
// the Connection header.
func removeHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// joinPath appends reqPath to the target's base path with one slash
// between them.
func joinPath(base, reqPath string) string {
	if base == "" || base == "/" {
		return reqPath
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(reqPath, "/")
}

// releasingBody runs release exactly once after the body is closed.
type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
