package config

import (
	"os"
	"time"
)

// Default values.
const (
	DefaultListenAddress     = ":8080"
	DefaultAdminAddress      = ":9090"
	DefaultMetricsPath       = "/metrics"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultUpstreamTimeout   = 30 * time.Second
	DefaultPoolSize          = 64
	DefaultIdleConnTimeout   = 90 * time.Second
	DefaultDialTimeout       = 5 * time.Second
	DefaultFailureThreshold  = 5
	DefaultOpenTimeout       = 30 * time.Second
	DefaultHalfOpenRequests  = 1
	DefaultClockSkew         = 30 * time.Second
	DefaultRevocationPrefix  = "apigateway:revoked:"
	DefaultRevocationTimeout = 200 * time.Millisecond
	DefaultRequestsPerSecond = 100
	DefaultBurst             = 200
	DefaultOTLPEndpoint      = "localhost:4317"
	DefaultServiceName       = "apigateway"
)

// Route ids and targets of the built-in configuration.
const (
	OrderRouteID     = "order_route"
	DefaultRouteID   = "default_route"
	OrderTarget      = "http://localhost:9001"
	DefaultTarget    = "http://localhost:9002"
	DefaultRouteBase = "/api/v1/"
)

// Environment variables supplying key material to the built-in
// configuration.
const (
	EnvJWTSecret        = "JWT_SECRET"
	EnvJWTPublicKeyFile = "JWT_PUBLIC_KEY_FILE"
	EnvJWTJWKSURL       = "JWT_JWKS_URL"
)

// OrderPrefixes are the path prefixes served by the order service.
var OrderPrefixes = []string{"/api/v1/ord/", "/api/v1/oms/"}

// DefaultConfig returns the built-in configuration: the order prefixes go
// to the order service and everything else under /api/v1/ to the default
// service. Authorization is enabled; validation fails until a key source
// is set, for example through AuthKeysFromEnv.
func DefaultConfig() *GatewayConfig {
	cfg := &GatewayConfig{
		Routes: []Route{
			{
				ID:       OrderRouteID,
				Priority: 100,
				Target:   OrderTarget,
				Match: MatchConfig{
					Prefixes: append([]string(nil), OrderPrefixes...),
				},
			},
			{
				ID:       DefaultRouteID,
				Priority: 0,
				Target:   DefaultTarget,
				Match: MatchConfig{
					Base:          DefaultRouteBase,
					ExcludeRoutes: []string{OrderRouteID},
				},
			},
		},
		Auth: AuthConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

// AuthKeysFromEnv fills unset key sources of a from the JWT_* environment
// variables.
func AuthKeysFromEnv(a *AuthConfig) {
	if a.HMACSecret == "" {
		a.HMACSecret = os.Getenv(EnvJWTSecret)
	}
	if a.PublicKeyFile == "" {
		a.PublicKeyFile = os.Getenv(EnvJWTPublicKeyFile)
	}
	if a.JWKSURL == "" {
		a.JWKSURL = os.Getenv(EnvJWTJWKSURL)
	}
}

// ApplyDefaults fills zero-valued settings in place.
func ApplyDefaults(cfg *GatewayConfig) {
	if cfg.Listen.Address == "" {
		cfg.Listen.Address = DefaultListenAddress
	}
	if cfg.Listen.ReadHeaderTimeout == 0 {
		cfg.Listen.ReadHeaderTimeout = Duration(DefaultReadHeaderTimeout)
	}
	if cfg.Listen.IdleTimeout == 0 {
		cfg.Listen.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if cfg.Listen.ShutdownTimeout == 0 {
		cfg.Listen.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}

	if cfg.Admin.Address == "" {
		cfg.Admin.Address = DefaultAdminAddress
	}
	if cfg.Admin.MetricsPath == "" {
		cfg.Admin.MetricsPath = DefaultMetricsPath
	}

	applyUpstreamDefaults(&cfg.Upstream)
	applyAuthDefaults(&cfg.Auth)

	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = DefaultBurst
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.OTLPEndpoint == "" {
		cfg.Tracing.OTLPEndpoint = DefaultOTLPEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultServiceName
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
}

func applyUpstreamDefaults(u *UpstreamConfig) {
	if u.Timeout == 0 {
		u.Timeout = Duration(DefaultUpstreamTimeout)
	}
	if u.PoolSize == 0 {
		u.PoolSize = DefaultPoolSize
	}
	if u.IdleConnTimeout == 0 {
		u.IdleConnTimeout = Duration(DefaultIdleConnTimeout)
	}
	if u.DialTimeout == 0 {
		u.DialTimeout = Duration(DefaultDialTimeout)
	}
	if u.CircuitBreaker.FailureThreshold == 0 {
		u.CircuitBreaker.FailureThreshold = DefaultFailureThreshold
	}
	if u.CircuitBreaker.OpenTimeout == 0 {
		u.CircuitBreaker.OpenTimeout = Duration(DefaultOpenTimeout)
	}
	if u.CircuitBreaker.HalfOpenRequests == 0 {
		u.CircuitBreaker.HalfOpenRequests = DefaultHalfOpenRequests
	}
}

func applyAuthDefaults(a *AuthConfig) {
	if len(a.Algorithms) == 0 {
		a.Algorithms = []string{"HS256"}
	}
	if a.ClockSkew == 0 {
		a.ClockSkew = Duration(DefaultClockSkew)
	}
	if a.Revocation.KeyPrefix == "" {
		a.Revocation.KeyPrefix = DefaultRevocationPrefix
	}
	if a.Revocation.Timeout == 0 {
		a.Revocation.Timeout = Duration(DefaultRevocationTimeout)
	}
}
