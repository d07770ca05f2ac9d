package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/bkr/apigateway/internal/observability"
)

// JWTConfig holds the claim requirements for JWTValidator.
type JWTConfig struct {
	// Issuer, when set, must equal the iss claim.
	Issuer string
	// Audience, when set, must intersect the aud claim.
	Audience []string
	// Algorithms lists accepted signing algorithms. Empty accepts any
	// algorithm the keys support.
	Algorithms []string
	// ClockSkew is the tolerance applied to exp and nbf.
	ClockSkew time.Duration
}

// JWTValidator validates signed JWTs against one or more key providers.
type JWTValidator struct {
	cfg        JWTConfig
	algorithms map[string]struct{}
	providers  []KeyProvider
	revocation RevocationStore
	logger     observability.Logger
	closers    []io.Closer
}

// JWTOption is a functional option for JWTValidator.
type JWTOption func(*JWTValidator)

// WithKeyProvider adds a key provider. Keys from all providers are merged.
func WithKeyProvider(p KeyProvider) JWTOption {
	return func(v *JWTValidator) {
		v.providers = append(v.providers, p)
	}
}

// WithRevocationStore enables the jti deny-list check.
func WithRevocationStore(s RevocationStore) JWTOption {
	return func(v *JWTValidator) {
		v.revocation = s
	}
}

// WithJWTLogger sets the logger.
func WithJWTLogger(logger observability.Logger) JWTOption {
	return func(v *JWTValidator) {
		v.logger = logger
	}
}

// withCloser registers a resource released by Close.
func withCloser(c io.Closer) JWTOption {
	return func(v *JWTValidator) {
		v.closers = append(v.closers, c)
	}
}

// NewJWTValidator creates a validator. At least one key provider is required.
func NewJWTValidator(cfg JWTConfig, opts ...JWTOption) (*JWTValidator, error) {
	v := &JWTValidator{
		cfg:        cfg,
		algorithms: make(map[string]struct{}, len(cfg.Algorithms)),
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	if len(v.providers) == 0 {
		return nil, fmt.Errorf("at least one key provider is required")
	}

	for _, alg := range cfg.Algorithms {
		v.algorithms[strings.ToUpper(alg)] = struct{}{}
	}

	return v, nil
}

// Validate implements TokenValidator.
func (v *JWTValidator) Validate(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	if err := v.checkAlgorithm(token); err != nil {
		return nil, err
	}

	set, err := v.keySet(ctx)
	if err != nil {
		return nil, err
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true), jws.WithRequireKid(false)),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.cfg.ClockSkew),
	}
	if v.cfg.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.cfg.Issuer))
	}

	tok, err := jwt.Parse([]byte(token), parseOpts...)
	if err != nil {
		return nil, classifyParseError(err)
	}

	if !v.audienceAllowed(tok.Audience()) {
		return nil, ErrInvalidAudience
	}

	if err := v.checkRevocation(ctx, tok.JwtID()); err != nil {
		return nil, err
	}

	return claimsFromToken(ctx, tok), nil
}

// Ping checks the revocation store when it supports pinging.
func (v *JWTValidator) Ping(ctx context.Context) error {
	p, ok := v.revocation.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Close releases resources owned by the validator's providers.
func (v *JWTValidator) Close() error {
	var errs []error
	for _, c := range v.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// checkAlgorithm reads the protected header and enforces the allow-list.
func (v *JWTValidator) checkAlgorithm(token string) error {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return ErrTokenMalformed
	}

	if len(v.algorithms) == 0 {
		return nil
	}

	alg := sigs[0].ProtectedHeaders().Algorithm().String()
	if _, ok := v.algorithms[strings.ToUpper(alg)]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
	return nil
}

// keySet merges the keys of all providers. A failing provider is skipped
// as long as another one still yields keys.
func (v *JWTValidator) keySet(ctx context.Context) (jwk.Set, error) {
	if len(v.providers) == 1 {
		return v.providers[0].KeySet(ctx)
	}

	merged := jwk.NewSet()
	for _, p := range v.providers {
		set, err := p.KeySet(ctx)
		if err != nil {
			v.logger.Warn("key provider failed", observability.Error(err))
			continue
		}
		for i := 0; i < set.Len(); i++ {
			if key, ok := set.Key(i); ok {
				_ = merged.AddKey(key)
			}
		}
	}

	if merged.Len() == 0 {
		return nil, ErrNoKeys
	}
	return merged, nil
}

func (v *JWTValidator) audienceAllowed(aud []string) bool {
	if len(v.cfg.Audience) == 0 {
		return true
	}
	for _, want := range v.cfg.Audience {
		for _, got := range aud {
			if want == got {
				return true
			}
		}
	}
	return false
}

// checkRevocation fails closed when the store cannot be reached.
func (v *JWTValidator) checkRevocation(ctx context.Context, jti string) error {
	if v.revocation == nil || jti == "" {
		return nil
	}

	revoked, err := v.revocation.IsRevoked(ctx, jti)
	if err != nil {
		v.logger.Error("token revocation check failed",
			observability.String("jti", jti),
			observability.Error(err),
		)
		if errors.Is(err, ErrRevocationCheck) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRevocationCheck, err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired()):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenNotYetValid()):
		return fmt.Errorf("%w: %v", ErrTokenNotYetValid, err)
	case errors.Is(err, jwt.ErrInvalidIssuer()):
		return fmt.Errorf("%w: %v", ErrInvalidIssuer, err)
	case errors.Is(err, jwt.ErrInvalidAudience()):
		return fmt.Errorf("%w: %v", ErrInvalidAudience, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}

func claimsFromToken(ctx context.Context, tok jwt.Token) *Claims {
	claims := &Claims{
		Subject:   tok.Subject(),
		Issuer:    tok.Issuer(),
		Audience:  tok.Audience(),
		ID:        tok.JwtID(),
		ExpiresAt: tok.Expiration(),
	}

	if all, err := tok.AsMap(ctx); err == nil {
		extra := make(map[string]interface{}, len(all))
		for k, val := range all {
			switch k {
			case jwt.SubjectKey, jwt.IssuerKey, jwt.AudienceKey, jwt.JwtIDKey,
				jwt.ExpirationKey, jwt.NotBeforeKey, jwt.IssuedAtKey:
				continue
			}
			extra[k] = val
		}
		claims.Extra = extra
	}

	return claims
}
