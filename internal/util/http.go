package util

import (
	"net/http"
	"strings"
)

// IsIdempotentMethod reports whether a failed request with this method may
// be replayed against the same upstream.
func IsIdempotentMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return true
	default:
		return false
	}
}

// HasEmptyBody reports whether the request carries no body bytes.
func HasEmptyBody(r *http.Request) bool {
	return r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0
}

// StatusClientClosedRequest is the non-standard status recorded when the
// caller disconnects before a response is produced.
const StatusClientClosedRequest = 499

// HTTPStatus maps an error kind to the status code returned to the caller.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindNone:
		return http.StatusOK
	case KindNoRouteMatched:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindClientCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}

// HTTPStatusOf maps err to a status code. A nil error maps to 200.
func HTTPStatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return HTTPStatus(KindOf(err))
}
