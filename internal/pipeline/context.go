package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/bkr/apigateway/internal/util"
)

// Well-known attribute keys.
const (
	AttrRouteID = "route_id"
	AttrTarget  = "target"
	AttrSubject = "subject"
	AttrClaims  = "claims"
)

// RequestContext carries one inbound request through the chain. It is
// owned by the goroutine serving the request and is not safe for
// concurrent use.
type RequestContext struct {
	Request   *http.Request
	RequestID string
	StartTime time.Time

	attrs map[string]interface{}
}

// NewRequestContext creates a context for r. The request id and start time
// are also stored in the request's context.Context for logging.
func NewRequestContext(r *http.Request, requestID string) *RequestContext {
	start := time.Now()
	ctx := util.ContextWithRequestID(r.Context(), requestID)
	ctx = util.ContextWithStartTime(ctx, start)

	return &RequestContext{
		Request:   r.WithContext(ctx),
		RequestID: requestID,
		StartTime: start,
		attrs:     make(map[string]interface{}),
	}
}

// Context returns the request's context. It is cancelled when the caller
// goes away.
func (rc *RequestContext) Context() context.Context {
	return rc.Request.Context()
}

// SetContext replaces the request's context, for example to attach a span.
func (rc *RequestContext) SetContext(ctx context.Context) {
	rc.Request = rc.Request.WithContext(ctx)
}

// Set stores an attribute.
func (rc *RequestContext) Set(key string, value interface{}) {
	rc.attrs[key] = value
}

// Get returns an attribute.
func (rc *RequestContext) Get(key string) (interface{}, bool) {
	v, ok := rc.attrs[key]
	return v, ok
}

// GetString returns a string attribute or "".
func (rc *RequestContext) GetString(key string) string {
	if v, ok := rc.attrs[key].(string); ok {
		return v
	}
	return ""
}

// SetRoute records the selected route and its target.
func (rc *RequestContext) SetRoute(routeID, target string) {
	rc.attrs[AttrRouteID] = routeID
	rc.attrs[AttrTarget] = target
	ctx := util.ContextWithRoute(rc.Request.Context(), routeID)
	rc.SetContext(util.ContextWithTarget(ctx, target))
}

// RouteID returns the selected route id or "".
func (rc *RequestContext) RouteID() string {
	return rc.GetString(AttrRouteID)
}

// Target returns the resolved upstream target or "".
func (rc *RequestContext) Target() string {
	return rc.GetString(AttrTarget)
}

// Elapsed returns the time since the request was accepted.
func (rc *RequestContext) Elapsed() time.Duration {
	return time.Since(rc.StartTime)
}
