package auth

import (
	"context"
	"fmt"

	"github.com/bkr/apigateway/internal/config"
	"github.com/bkr/apigateway/internal/observability"
)

// NewValidatorFromConfig builds a JWTValidator from configuration. Key file
// watching starts immediately and stops when ctx is canceled or the
// validator is closed.
func NewValidatorFromConfig(
	ctx context.Context,
	cfg config.AuthConfig,
	logger observability.Logger,
) (*JWTValidator, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	opts := []JWTOption{WithJWTLogger(logger)}

	var cleanup []func() error
	ok := false
	defer func() {
		if ok {
			return
		}
		for _, fn := range cleanup {
			_ = fn()
		}
	}()

	if cfg.HMACSecret != "" {
		keys, err := NewHMACKeys([]byte(cfg.HMACSecret))
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithKeyProvider(keys))
	}

	if cfg.PublicKeyFile != "" {
		provider, err := NewKeyFileProvider(cfg.PublicKeyFile, WithKeyFileLogger(logger))
		if err != nil {
			return nil, err
		}
		cleanup = append(cleanup, provider.Close)
		if err := provider.Start(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, WithKeyProvider(provider), withCloser(provider))
	}

	if cfg.JWKSURL != "" {
		provider, err := NewJWKSProvider(ctx, cfg.JWKSURL, 0, nil)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithKeyProvider(provider))
	}

	if cfg.Revocation.Enabled {
		store, err := NewRedisRevocationStore(ctx, RedisRevocationConfig{
			Addr:      cfg.Revocation.RedisAddr,
			Password:  cfg.Revocation.RedisPassword,
			DB:        cfg.Revocation.RedisDB,
			KeyPrefix: cfg.Revocation.KeyPrefix,
			Timeout:   cfg.Revocation.Timeout.Duration(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create revocation store: %w", err)
		}
		cleanup = append(cleanup, store.Close)
		opts = append(opts, WithRevocationStore(store), withCloser(store))
	}

	v, err := NewJWTValidator(JWTConfig{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		Algorithms: cfg.Algorithms,
		ClockSkew:  cfg.ClockSkew.Duration(),
	}, opts...)
	if err != nil {
		return nil, err
	}

	ok = true
	logger.Info("jwt validator configured",
		observability.Int("key_providers", len(v.providers)),
		observability.Strings("algorithms", cfg.Algorithms),
		observability.Bool("revocation", cfg.Revocation.Enabled),
	)

	return v, nil
}
