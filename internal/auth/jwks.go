package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultJWKSRefreshInterval is the minimum interval between JWKS fetches.
const DefaultJWKSRefreshInterval = 15 * time.Minute

// JWKSProvider serves keys from a remote JWKS endpoint. The document is
// cached and refreshed in the background for as long as the context passed
// to NewJWKSProvider is alive.
type JWKSProvider struct {
	url   string
	cache *jwk.Cache
}

// NewJWKSProvider registers url and performs the first fetch.
func NewJWKSProvider(ctx context.Context, url string, refresh time.Duration, client *http.Client) (*JWKSProvider, error) {
	if refresh <= 0 {
		refresh = DefaultJWKSRefreshInterval
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(url,
		jwk.WithMinRefreshInterval(refresh),
		jwk.WithHTTPClient(client),
	); err != nil {
		return nil, fmt.Errorf("failed to register jwks url: %w", err)
	}

	if _, err := cache.Refresh(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to fetch jwks from %s: %w", url, err)
	}

	return &JWKSProvider{url: url, cache: cache}, nil
}

// KeySet implements KeyProvider.
func (p *JWKSProvider) KeySet(ctx context.Context) (jwk.Set, error) {
	set, err := p.cache.Get(ctx, p.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoKeys, err)
	}
	return set, nil
}
