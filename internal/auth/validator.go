package auth

import (
	"context"
	"time"
)

// Claims is the validated content of a token.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ID        string
	ExpiresAt time.Time
	Extra     map[string]interface{}
}

// TokenValidator checks a bearer token. Implementations must be safe for
// concurrent use. A nil error means the token is accepted.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// ValidatorFunc adapts a function to TokenValidator.
type ValidatorFunc func(ctx context.Context, token string) (*Claims, error)

// Validate implements TokenValidator.
func (f ValidatorFunc) Validate(ctx context.Context, token string) (*Claims, error) {
	return f(ctx, token)
}
