package config

import (
	"fmt"
	"strings"

	"github.com/bkr/apigateway/internal/util"
)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
	validAlgorithms = map[string]bool{
		"HS256": true, "HS384": true, "HS512": true,
		"RS256": true, "RS384": true, "RS512": true,
		"ES256": true, "ES384": true, "ES512": true,
		"PS256": true, "PS384": true, "PS512": true,
		"EdDSA": true,
	}
)

// Validator validates gateway configuration.
type Validator struct {
	errs *util.ValidationError
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig validates a gateway configuration.
func ValidateConfig(cfg *GatewayConfig) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration. The returned error is a
// *util.ValidationError carrying one message per offending field.
func (v *Validator) Validate(cfg *GatewayConfig) error {
	v.errs = util.NewValidationError("configuration validation failed")

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errs
	}

	v.validateListen(cfg)
	v.validateUpstream(&cfg.Upstream)
	v.validateRoutes(cfg)
	v.validateAuth(&cfg.Auth)
	v.validateRateLimit(&cfg.RateLimit)
	v.validateLogging(&cfg.Logging)
	v.validateTracing(&cfg.Tracing)

	if v.errs.HasErrors() {
		return v.errs
	}
	return nil
}

func (v *Validator) addError(path, message string) {
	if path == "" {
		path = "config"
	}
	v.errs.AddField(path, message)
}

func (v *Validator) validateListen(cfg *GatewayConfig) {
	if cfg.Listen.Address == "" {
		v.addError("listen.address", "address is required")
	}
	if wt := cfg.Listen.WriteTimeout.Duration(); wt < 0 {
		v.addError("listen.writeTimeout", "must not be negative")
	} else if wt > 0 && wt <= cfg.MaxUpstreamTimeout() {
		v.addError("listen.writeTimeout",
			fmt.Sprintf("must exceed the longest upstream timeout %s", cfg.MaxUpstreamTimeout()))
	}
	if cfg.Admin.IsEnabled() {
		if cfg.Admin.Address == "" {
			v.addError("admin.address", "address is required")
		} else if cfg.Admin.Address == cfg.Listen.Address {
			v.addError("admin.address", "must differ from listen.address")
		}
		if !strings.HasPrefix(cfg.Admin.MetricsPath, "/") {
			v.addError("admin.metricsPath", "must start with '/'")
		}
	}
}

func (v *Validator) validateUpstream(u *UpstreamConfig) {
	if err := util.ValidatePositiveDuration(u.Timeout.Duration()); err != nil {
		v.addError("upstream.timeout", err.Error())
	}
	if u.PoolSize <= 0 {
		v.addError("upstream.poolSize", "must be positive")
	}
	if u.CircuitBreaker.Enabled {
		if u.CircuitBreaker.FailureThreshold <= 0 {
			v.addError("upstream.circuitBreaker.failureThreshold", "must be positive")
		}
		if u.CircuitBreaker.OpenTimeout <= 0 {
			v.addError("upstream.circuitBreaker.openTimeout", "must be positive")
		}
	}
}

func (v *Validator) validateRoutes(cfg *GatewayConfig) {
	if len(cfg.Routes) == 0 {
		v.addError("routes", "at least one route is required")
		return
	}

	seen := make(map[string]bool, len(cfg.Routes))
	for i := range cfg.Routes {
		r := &cfg.Routes[i]
		path := fmt.Sprintf("routes[%d]", i)

		if r.ID == "" {
			v.addError(path+".id", "id is required")
		} else if seen[r.ID] {
			v.addError(path+".id", fmt.Sprintf("duplicate route id %q", r.ID))
		}
		seen[r.ID] = true

		if err := util.ValidateURL(r.Target); err != nil {
			v.addError(path+".target", err.Error())
		}
		if r.Timeout < 0 {
			v.addError(path+".timeout", "must not be negative")
		}

		v.validateMatch(cfg, r, path+".match")
	}
}

func (v *Validator) validateMatch(cfg *GatewayConfig, r *Route, path string) {
	m := &r.Match

	hasPrefixes := len(m.Prefixes) > 0
	hasBase := m.Base != ""
	if !hasPrefixes && !hasBase && m.Expression == "" {
		v.addError(path, "one of prefixes, base or expression is required")
	}
	if hasPrefixes && hasBase {
		v.addError(path, "prefixes and base are mutually exclusive")
	}

	for i, p := range m.Prefixes {
		if err := util.ValidatePathPrefix(p); err != nil {
			v.addError(fmt.Sprintf("%s.prefixes[%d]", path, i), err.Error())
		}
	}

	if hasBase {
		if err := util.ValidatePathPrefix(m.Base); err != nil {
			v.addError(path+".base", err.Error())
		}
	}
	if !hasBase && (len(m.Exclude) > 0 || len(m.ExcludeRoutes) > 0) {
		v.addError(path, "exclude and excludeRoutes require base")
	}
	for i, p := range m.Exclude {
		if err := util.ValidatePathPrefix(p); err != nil {
			v.addError(fmt.Sprintf("%s.exclude[%d]", path, i), err.Error())
		}
	}
	for i, id := range m.ExcludeRoutes {
		field := fmt.Sprintf("%s.excludeRoutes[%d]", path, i)
		if id == r.ID {
			v.addError(field, "route cannot exclude itself")
			continue
		}
		ref, ok := cfg.FindRoute(id)
		if !ok {
			v.addError(field, fmt.Sprintf("unknown route %q", id))
			continue
		}
		if len(ref.Match.Prefixes) == 0 {
			v.addError(field, fmt.Sprintf("route %q has no prefixes to exclude", id))
		}
	}

	for i, method := range m.Methods {
		if err := util.ValidateHTTPMethod(method); err != nil {
			v.addError(fmt.Sprintf("%s.methods[%d]", path, i), err.Error())
		}
	}
	for name := range m.Headers {
		if err := util.ValidateHeaderName(name); err != nil {
			v.addError(path+".headers", err.Error())
		}
	}
}

func (v *Validator) validateAuth(a *AuthConfig) {
	if !a.Enabled {
		return
	}

	if a.HMACSecret == "" && a.PublicKeyFile == "" && a.JWKSURL == "" {
		v.addError("auth", "one of hmacSecret, publicKeyFile or jwksUrl is required")
	}
	if a.JWKSURL != "" {
		if err := util.ValidateURL(a.JWKSURL); err != nil {
			v.addError("auth.jwksUrl", err.Error())
		}
	}
	for i, alg := range a.Algorithms {
		if !validAlgorithms[alg] {
			v.addError(fmt.Sprintf("auth.algorithms[%d]", i), fmt.Sprintf("unsupported algorithm %q", alg))
		}
	}
	if a.ClockSkew < 0 {
		v.addError("auth.clockSkew", "must not be negative")
	}
	for i, p := range a.SkipPaths {
		if err := util.ValidatePathPrefix(p); err != nil {
			v.addError(fmt.Sprintf("auth.skipPaths[%d]", i), err.Error())
		}
	}
	if a.Revocation.Enabled && a.Revocation.RedisAddr == "" {
		v.addError("auth.revocation.redisAddr", "redisAddr is required when revocation is enabled")
	}
}

func (v *Validator) validateRateLimit(r *RateLimitConfig) {
	if !r.Enabled {
		return
	}
	if r.RequestsPerSecond <= 0 {
		v.addError("rateLimit.requestsPerSecond", "must be positive")
	}
	if r.Burst <= 0 {
		v.addError("rateLimit.burst", "must be positive")
	}
}

func (v *Validator) validateLogging(l *LoggingConfig) {
	if !validLogLevels[l.Level] {
		v.addError("logging.level", fmt.Sprintf("unsupported level %q", l.Level))
	}
	if !validLogFormats[l.Format] {
		v.addError("logging.format", fmt.Sprintf("unsupported format %q", l.Format))
	}
}

func (v *Validator) validateTracing(t *TracingConfig) {
	if !t.Enabled {
		return
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		v.addError("tracing.samplingRate", "must be between 0 and 1")
	}
	if t.OTLPEndpoint == "" {
		v.addError("tracing.otlpEndpoint", "endpoint is required when tracing is enabled")
	}
}
