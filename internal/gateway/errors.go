package gateway

import (
	"errors"
	"net/http"

	"github.com/bkr/apigateway/internal/util"
)

// Sentinel errors for gateway operations.
var (
	// ErrGatewayNotStopped indicates that the gateway is not in
	// stopped state when a start operation is attempted.
	ErrGatewayNotStopped = errors.New("gateway is not in stopped state")

	// ErrGatewayNotRunning indicates that the gateway is not
	// running when a stop operation is attempted.
	ErrGatewayNotRunning = errors.New("gateway is not running")

	// ErrNilConfig indicates that a nil configuration was provided.
	ErrNilConfig = errors.New("configuration is required")

	// ErrNilHandler indicates that no request handler was provided.
	ErrNilHandler = errors.New("handler is required")
)

// Error response bodies. They never carry request details.
const (
	bodyNotFound      = `{"error":"not found","message":"no route matched"}`
	bodyUnauthorized  = `{"error":"unauthorized"}`
	bodyTimeout       = `{"error":"gateway timeout"}`
	bodyBadGateway    = `{"error":"bad gateway"}`
	bodyClientClosed  = `{"error":"client closed request"}`
	contentTypeJSON   = "application/json"
	headerRequestID   = "X-Request-ID"
	headerWWWAuth     = "WWW-Authenticate"
	bearerChallenge   = "Bearer"
	headerContentType = "Content-Type"
)

// errorResponse returns the status and body for kind.
func errorResponse(kind util.ErrorKind) (int, string) {
	status := util.HTTPStatus(kind)
	switch kind {
	case util.KindNoRouteMatched:
		return status, bodyNotFound
	case util.KindUnauthorized:
		return status, bodyUnauthorized
	case util.KindUpstreamTimeout:
		return status, bodyTimeout
	case util.KindClientCanceled:
		return status, bodyClientClosed
	default:
		return http.StatusBadGateway, bodyBadGateway
	}
}
