package config

import "time"

// GatewayConfig is the root configuration.
type GatewayConfig struct {
	Listen    ListenConfig    `yaml:"listen" json:"listen"`
	Admin     AdminConfig     `yaml:"admin" json:"admin"`
	Upstream  UpstreamConfig  `yaml:"upstream" json:"upstream"`
	Routes    []Route         `yaml:"routes" json:"routes"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
}

// ListenConfig configures the public listener.
type ListenConfig struct {
	Address           string   `yaml:"address" json:"address"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`
	ReadTimeout       Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout      Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout       Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout   Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// AdminConfig configures the admin listener serving metrics and health.
type AdminConfig struct {
	Enabled     *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Address     string `yaml:"address" json:"address"`
	MetricsPath string `yaml:"metricsPath,omitempty" json:"metricsPath,omitempty"`
}

// IsEnabled reports whether the admin listener runs. It defaults to true.
func (a AdminConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// UpstreamConfig configures dispatch to route targets.
type UpstreamConfig struct {
	Timeout         Duration             `yaml:"timeout" json:"timeout"`
	PoolSize        int                  `yaml:"poolSize" json:"poolSize"`
	IdleConnTimeout Duration             `yaml:"idleConnTimeout,omitempty" json:"idleConnTimeout,omitempty"`
	DialTimeout     Duration             `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`
	Retry           *bool                `yaml:"retry,omitempty" json:"retry,omitempty"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`
}

// RetryEnabled reports whether the single idempotent retry is enabled.
// It defaults to true.
func (u UpstreamConfig) RetryEnabled() bool {
	return u.Retry == nil || *u.Retry
}

// CircuitBreakerConfig configures the per-target circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	FailureThreshold int      `yaml:"failureThreshold" json:"failureThreshold"`
	OpenTimeout      Duration `yaml:"openTimeout" json:"openTimeout"`
	HalfOpenRequests int      `yaml:"halfOpenRequests,omitempty" json:"halfOpenRequests,omitempty"`
}

// Route configures one entry of the route table.
type Route struct {
	ID       string      `yaml:"id" json:"id"`
	Priority int         `yaml:"priority" json:"priority"`
	Target   string      `yaml:"target" json:"target"`
	Match    MatchConfig `yaml:"match" json:"match"`
	Timeout  Duration    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// MatchConfig describes the predicate of a route.
//
// Prefixes selects a prefix-set match. Base selects a complement match: the
// path must start with Base and with none of Exclude, nor with any prefix of
// the routes listed in ExcludeRoutes. Methods and Headers further restrict
// either form. Expression is a CEL predicate over request.method,
// request.path and request.headers and may stand alone.
type MatchConfig struct {
	Prefixes      []string          `yaml:"prefixes,omitempty" json:"prefixes,omitempty"`
	Base          string            `yaml:"base,omitempty" json:"base,omitempty"`
	Exclude       []string          `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	ExcludeRoutes []string          `yaml:"excludeRoutes,omitempty" json:"excludeRoutes,omitempty"`
	Methods       []string          `yaml:"methods,omitempty" json:"methods,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Expression    string            `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// AuthConfig configures bearer-token authorization.
type AuthConfig struct {
	Enabled       bool             `yaml:"enabled" json:"enabled"`
	Issuer        string           `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	Audience      []string         `yaml:"audience,omitempty" json:"audience,omitempty"`
	Algorithms    []string         `yaml:"algorithms,omitempty" json:"algorithms,omitempty"`
	HMACSecret    string           `yaml:"hmacSecret,omitempty" json:"-"`
	PublicKeyFile string           `yaml:"publicKeyFile,omitempty" json:"publicKeyFile,omitempty"`
	JWKSURL       string           `yaml:"jwksUrl,omitempty" json:"jwksUrl,omitempty"`
	ClockSkew     Duration         `yaml:"clockSkew,omitempty" json:"clockSkew,omitempty"`
	SkipPaths     []string         `yaml:"skipPaths,omitempty" json:"skipPaths,omitempty"`
	Revocation    RevocationConfig `yaml:"revocation" json:"revocation"`
}

// RevocationConfig configures the Redis-backed token deny-list.
type RevocationConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	RedisAddr     string   `yaml:"redisAddr,omitempty" json:"redisAddr,omitempty"`
	RedisPassword string   `yaml:"redisPassword,omitempty" json:"-"`
	RedisDB       int      `yaml:"redisDB,omitempty" json:"redisDB,omitempty"`
	KeyPrefix     string   `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
	Timeout       Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// RateLimitConfig configures the global token bucket.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty" json:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty" json:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty" json:"maxAgeDays,omitempty"`
	Compress   bool   `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// FindRoute returns the configured route with the given id.
func (c *GatewayConfig) FindRoute(id string) (*Route, bool) {
	for i := range c.Routes {
		if c.Routes[i].ID == id {
			return &c.Routes[i], true
		}
	}
	return nil, false
}

// MaxUpstreamTimeout returns the longest deadline a dispatch can run under:
// the upstream timeout or any longer route timeout.
func (c *GatewayConfig) MaxUpstreamTimeout() time.Duration {
	longest := c.Upstream.Timeout.Duration()
	for i := range c.Routes {
		if d := c.Routes[i].Timeout.Duration(); d > longest {
			longest = d
		}
	}
	return longest
}
