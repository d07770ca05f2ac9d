package auth

import "errors"

// Sentinel errors for credential extraction and token validation.
var (
	ErrMissingCredentials   = errors.New("authorization header is missing")
	ErrInvalidScheme        = errors.New("authorization scheme is not Bearer")
	ErrEmptyToken           = errors.New("token is empty")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrTokenExpired         = errors.New("token has expired")
	ErrTokenNotYetValid     = errors.New("token is not yet valid")
	ErrInvalidSignature     = errors.New("token signature is invalid")
	ErrInvalidIssuer        = errors.New("token issuer is invalid")
	ErrInvalidAudience      = errors.New("token audience is invalid")
	ErrUnsupportedAlgorithm = errors.New("signing algorithm is not allowed")
	ErrTokenRevoked         = errors.New("token has been revoked")
	ErrNoKeys               = errors.New("no verification keys available")
	ErrRevocationCheck      = errors.New("revocation check failed")
)

// Reason returns a short, bounded label for err, suitable for metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrInvalidScheme):
		return "invalid_scheme"
	case errors.Is(err, ErrEmptyToken):
		return "empty_token"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrInvalidIssuer):
		return "invalid_issuer"
	case errors.Is(err, ErrInvalidAudience):
		return "invalid_audience"
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrNoKeys):
		return "no_keys"
	case errors.Is(err, ErrRevocationCheck):
		return "revocation_unavailable"
	default:
		return "invalid"
	}
}
