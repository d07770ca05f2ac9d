package auth

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeyProvider supplies verification keys.
type KeyProvider interface {
	KeySet(ctx context.Context) (jwk.Set, error)
}

// KeyProviderFunc adapts a function to KeyProvider.
type KeyProviderFunc func(ctx context.Context) (jwk.Set, error)

// KeySet implements KeyProvider.
func (f KeyProviderFunc) KeySet(ctx context.Context) (jwk.Set, error) {
	return f(ctx)
}

// StaticKeys is a KeyProvider over a fixed key set.
type StaticKeys struct {
	set jwk.Set
}

// NewStaticKeys wraps set.
func NewStaticKeys(set jwk.Set) *StaticKeys {
	return &StaticKeys{set: set}
}

// NewHMACKeys returns a provider holding one symmetric key.
func NewHMACKeys(secret []byte) (*StaticKeys, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("hmac secret is empty")
	}

	key, err := jwk.FromRaw(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create hmac key: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("failed to add hmac key: %w", err)
	}
	return &StaticKeys{set: set}, nil
}

// KeySet implements KeyProvider.
func (s *StaticKeys) KeySet(_ context.Context) (jwk.Set, error) {
	if s.set == nil || s.set.Len() == 0 {
		return nil, ErrNoKeys
	}
	return s.set, nil
}

// ParseKeyData parses PEM blocks or a JWK / JWKS JSON document into a set
// of public verification keys.
func ParseKeyData(data []byte) (jwk.Set, error) {
	isPEM := bytes.Contains(data, []byte("-----BEGIN"))

	set, err := jwk.Parse(data, jwk.WithPEM(isPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse keys: %w", err)
	}
	if set.Len() == 0 {
		return nil, ErrNoKeys
	}

	if isPEM {
		public, err := jwk.PublicSetOf(set)
		if err != nil {
			return nil, fmt.Errorf("failed to derive public keys: %w", err)
		}
		return public, nil
	}
	return set, nil
}

// LoadKeyFile reads and parses a key file.
func LoadKeyFile(path string) (jwk.Set, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied key path
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	return ParseKeyData(data)
}
