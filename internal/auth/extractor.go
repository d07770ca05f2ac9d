package auth

import (
	"net/http"
	"strings"
)

const bearerScheme = "bearer"

// ExtractBearer returns the token of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func ExtractBearer(header http.Header) (string, error) {
	value := header.Get("Authorization")
	if value == "" {
		return "", ErrMissingCredentials
	}

	scheme, token, found := strings.Cut(value, " ")
	if !strings.EqualFold(scheme, bearerScheme) {
		return "", ErrInvalidScheme
	}
	if !found {
		return "", ErrEmptyToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}
