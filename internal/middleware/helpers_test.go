package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bkr/apigateway/internal/pipeline"
)

func newTestContext(t *testing.T, method, target string) *pipeline.RequestContext {
	t.Helper()
	return pipeline.NewRequestContext(httptest.NewRequest(method, target, nil), "req-1")
}

// countingHandler counts invocations and answers 200.
type countingHandler struct {
	calls int
	seen  *pipeline.RequestContext
}

func (h *countingHandler) Serve(rc *pipeline.RequestContext) (*pipeline.Response, error) {
	h.calls++
	h.seen = rc
	return pipeline.BytesResponse(http.StatusOK, "text/plain", []byte("ok")), nil
}
