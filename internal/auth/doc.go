// Package auth validates bearer tokens presented to the gateway.
//
// TokenValidator is the pluggable contract used by the authorization
// middleware. JWTValidator implements it with github.com/lestrrat-go/jwx:
// signature verification against keys from one or more KeyProviders,
// exp/nbf checks with a clock skew, issuer and audience checks, an
// algorithm allow-list, and an optional RevocationStore consulted by jti.
//
// Key providers:
//   - StaticKeys: a fixed set, for example an HMAC secret.
//   - KeyFileProvider: a PEM or JWK file reloaded on change via fsnotify.
//   - JWKSProvider: a remote JWKS document cached and refreshed in the
//     background.
package auth
