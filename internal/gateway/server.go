package gateway

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/bkr/apigateway/internal/observability"
	"github.com/bkr/apigateway/internal/pipeline"
	"github.com/bkr/apigateway/internal/router"
	"github.com/bkr/apigateway/internal/security"
	"github.com/bkr/apigateway/internal/util"
)

// Dispatcher forwards a request to a matched route.
type Dispatcher interface {
	Dispatch(rc *pipeline.RequestContext, route *router.Route) (*pipeline.Response, error)
}

// Server is the gateway's http.Handler.
type Server struct {
	table       *router.Table
	dispatcher  Dispatcher
	middlewares []pipeline.Middleware
	logger      observability.Logger
	handler     pipeline.Handler
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMiddlewares adds middlewares to the chain. They are ordered by their
// Order value.
func WithMiddlewares(mws ...pipeline.Middleware) ServerOption {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mws...)
	}
}

// NewServer creates a Server over a frozen route table.
func NewServer(table *router.Table, dispatcher Dispatcher, opts ...ServerOption) (*Server, error) {
	if table == nil {
		return nil, fmt.Errorf("route table is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	s := &Server{
		table:      table,
		dispatcher: dispatcher,
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.handler = pipeline.NewChain(s.middlewares...).Then(pipeline.HandlerFunc(s.route))

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(headerRequestID)
	if !security.IsWellFormedID(requestID) {
		requestID = security.GenerateUniqueHash()
	}

	rc := pipeline.NewRequestContext(r, requestID)
	w.Header().Set(headerRequestID, requestID)

	resp, err := s.serve(rc)
	if err == nil && resp == nil {
		err = fmt.Errorf("%w: empty response", util.ErrInternal)
	}
	if err != nil {
		_ = resp.Close()
		s.writeError(w, rc, err)
		return
	}

	s.writeResponse(w, rc, resp)
}

// route is the terminal step: normalize, match, dispatch.
func (s *Server) route(rc *pipeline.RequestContext) (*pipeline.Response, error) {
	u := *rc.Request.URL
	if normalized := router.NormalizePath(u.Path); normalized != u.Path {
		u.Path = normalized
		u.RawPath = ""
	}
	req := rc.Request.WithContext(rc.Context())
	req.URL = &u
	rc.Request = req

	route, err := s.table.MatchRequest(req)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Dispatch(rc, route)
}

// serve runs the chain and converts a panic into an internal error.
func (s *Server) serve(rc *pipeline.RequestContext) (resp *pipeline.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
				panic(p)
			}
			s.logger.WithContext(rc.Context()).Error("panic recovered",
				observability.Any("panic", p),
				observability.String("stack", string(debug.Stack())),
			)
			_ = resp.Close()
			resp = nil
			err = fmt.Errorf("%w: panic: %v", util.ErrInternal, p)
		}
	}()

	return s.handler.Serve(rc)
}

func (s *Server) writeResponse(w http.ResponseWriter, rc *pipeline.RequestContext, resp *pipeline.Response) {
	defer func() { _ = resp.Close() }()

	header := w.Header()
	for k, values := range resp.Header {
		if k == headerRequestID {
			continue
		}
		header[k] = append([]string(nil), values...)
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.WithContext(rc.Context()).Debug("response copy interrupted",
			observability.String("route", rc.RouteID()),
			observability.Error(err),
		)
	}
}

func (s *Server) writeError(w http.ResponseWriter, rc *pipeline.RequestContext, err error) {
	kind := util.KindOf(err)
	status, body := errorResponse(kind)

	logger := s.logger.WithContext(rc.Context())
	fields := []observability.Field{
		observability.String("route", rc.RouteID()),
		observability.String("target", rc.Target()),
		observability.String("kind", kind.String()),
		observability.Int("status", status),
		observability.Error(err),
	}
	switch {
	case kind == util.KindClientCanceled:
		logger.Info("client canceled request", fields...)
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", fields...)
	default:
		logger.Debug("request rejected", fields...)
	}

	header := w.Header()
	header.Set(headerContentType, contentTypeJSON)
	if kind == util.KindUnauthorized {
		header.Set(headerWWWAuth, bearerChallenge)
	}
	w.WriteHeader(status)

	if _, werr := io.WriteString(w, body); werr != nil {
		logger.Debug("error response not delivered", observability.Error(werr))
	}
}
