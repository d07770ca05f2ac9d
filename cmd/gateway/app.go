package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/bkr/apigateway/internal/auth"
	"github.com/bkr/apigateway/internal/config"
	"github.com/bkr/apigateway/internal/gateway"
	"github.com/bkr/apigateway/internal/health"
	"github.com/bkr/apigateway/internal/middleware"
	"github.com/bkr/apigateway/internal/observability"
	"github.com/bkr/apigateway/internal/pipeline"
	"github.com/bkr/apigateway/internal/proxy"
	"github.com/bkr/apigateway/internal/router"
)

const metricsNamespace = "apigateway"

// application holds all application components.
type application struct {
	config     *config.GatewayConfig
	logger     observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	table      *router.Table
	validator  *auth.JWTValidator
	dispatcher *proxy.Dispatcher
	checker    *health.Checker
	gateway    *gateway.Gateway
}

// newApplication builds every component from cfg. Resources acquired before
// a failure are released.
func newApplication(ctx context.Context, cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: observability.NewMetrics(metricsNamespace),
	}
	app.metrics.SetBuildInfo(version, gitCommit, buildTime)

	ok := false
	defer func() {
		if !ok {
			_ = app.close(context.Background())
		}
	}()

	tracer, err := initTracer(cfg.Tracing)
	if err != nil {
		return nil, err
	}
	app.tracer = tracer

	table, err := router.Build(cfg.Routes)
	if err != nil {
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}
	app.table = table

	if cfg.Auth.Enabled {
		validator, verr := auth.NewValidatorFromConfig(ctx, cfg.Auth, logger)
		if verr != nil {
			return nil, fmt.Errorf("failed to configure authorization: %w", verr)
		}
		app.validator = validator
	}

	app.dispatcher = proxy.NewDispatcher(dispatcherConfig(cfg.Upstream),
		proxy.WithLogger(logger),
		proxy.WithMetrics(app.metrics),
	)

	server, err := gateway.NewServer(table, app.dispatcher,
		gateway.WithServerLogger(logger),
		gateway.WithMiddlewares(app.middlewares()...),
	)
	if err != nil {
		return nil, err
	}

	app.checker = health.NewChecker(version, health.WithLogger(logger))
	app.registerChecks()

	gw, err := gateway.New(cfg, server,
		gateway.WithLogger(logger),
		gateway.WithShutdownTimeout(cfg.Listen.ShutdownTimeout.Duration()),
		gateway.WithAdminHandler(gateway.NewAdminHandler(app.metrics, app.checker, cfg.Admin.MetricsPath)),
		gateway.WithStoppingHook(func() { app.checker.SetDraining(true) }),
	)
	if err != nil {
		return nil, err
	}
	app.gateway = gw

	logger.Info("gateway configured",
		observability.Int("routes", table.Len()),
		observability.Bool("auth", cfg.Auth.Enabled),
		observability.Bool("rate_limit", cfg.RateLimit.Enabled),
		observability.Bool("tracing", tracer.Enabled()),
		observability.Bool("circuit_breaker", cfg.Upstream.CircuitBreaker.Enabled),
	)

	ok = true
	return app, nil
}

// middlewares returns the configured middlewares. The chain orders them.
func (a *application) middlewares() []pipeline.Middleware {
	mws := []pipeline.Middleware{
		middleware.Logging(a.logger),
		middleware.RequestMetrics(a.metrics),
	}

	if a.tracer.Enabled() {
		mws = append(mws, middleware.Tracing(a.tracer))
	}

	if a.config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			a.config.RateLimit.RequestsPerSecond,
			a.config.RateLimit.Burst,
			middleware.WithRateLimiterLogger(a.logger),
			middleware.WithRateLimiterMetrics(a.metrics),
		)
		mws = append(mws, middleware.RateLimit(limiter))
	}

	if a.validator != nil {
		mws = append(mws, middleware.Auth(a.validator,
			middleware.WithAuthLogger(a.logger),
			middleware.WithAuthMetrics(a.metrics),
			middleware.WithSkipPaths(a.config.Auth.SkipPaths...),
		))
	}

	return mws
}

// registerChecks adds the readiness checks.
func (a *application) registerChecks() {
	a.checker.Register(health.NewCheck("routes", func(context.Context) error {
		if a.table.Len() == 0 {
			return errors.New("route table is empty")
		}
		return nil
	}))

	if a.validator != nil && a.config.Auth.Revocation.Enabled {
		a.checker.Register(health.NewCheck("revocation_store", a.validator.Ping))
	}
}

// dispatcherConfig converts the upstream settings.
func dispatcherConfig(cfg config.UpstreamConfig) proxy.Config {
	return proxy.Config{
		Timeout: cfg.Timeout.Duration(),
		Retry:   cfg.RetryEnabled(),
		Pool: proxy.PoolConfig{
			Size:            cfg.PoolSize,
			IdleConnTimeout: cfg.IdleConnTimeout.Duration(),
			DialTimeout:     cfg.DialTimeout.Duration(),
		},
		CircuitBreaker: proxy.BreakerConfig{
			Enabled:          cfg.CircuitBreaker.Enabled,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			OpenTimeout:      cfg.CircuitBreaker.OpenTimeout.Duration(),
			HalfOpenRequests: cfg.CircuitBreaker.HalfOpenRequests,
		},
	}
}

// initTracer initializes the tracer.
func initTracer(cfg config.TracingConfig) (*observability.Tracer, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = config.DefaultServiceName
	}

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.SamplingRate,
		Enabled:      cfg.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	return tracer, nil
}
