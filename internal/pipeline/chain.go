package pipeline

import (
	"math"
	"sort"
)

// Order bounds. Lower values run earlier and wrap later middlewares.
const (
	OrderHighestPrecedence = math.MinInt32
	OrderLowestPrecedence  = math.MaxInt32
)

// Handler produces the response for a request.
type Handler interface {
	Serve(rc *RequestContext) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(rc *RequestContext) (*Response, error)

// Serve implements Handler.
func (f HandlerFunc) Serve(rc *RequestContext) (*Response, error) {
	return f(rc)
}

// Middleware intercepts a request around the rest of the chain.
type Middleware interface {
	Name() string
	Order() int
	Intercept(rc *RequestContext, next Handler) (*Response, error)
}

// InterceptFunc is the function form of Middleware.Intercept.
type InterceptFunc func(rc *RequestContext, next Handler) (*Response, error)

type funcMiddleware struct {
	name  string
	order int
	fn    InterceptFunc
}

// NewMiddleware builds a Middleware from a function.
func NewMiddleware(name string, order int, fn InterceptFunc) Middleware {
	return &funcMiddleware{name: name, order: order, fn: fn}
}

func (m *funcMiddleware) Name() string { return m.name }
func (m *funcMiddleware) Order() int   { return m.order }

func (m *funcMiddleware) Intercept(rc *RequestContext, next Handler) (*Response, error) {
	return m.fn(rc, next)
}

// Chain is an immutable, ordered list of middlewares.
type Chain struct {
	middlewares []Middleware
}

// NewChain sorts middlewares by Order. Equal orders keep their given
// relative position. Nil entries are dropped.
func NewChain(middlewares ...Middleware) *Chain {
	mws := make([]Middleware, 0, len(middlewares))
	for _, mw := range middlewares {
		if mw != nil {
			mws = append(mws, mw)
		}
	}
	sort.SliceStable(mws, func(i, j int) bool {
		return mws[i].Order() < mws[j].Order()
	})
	return &Chain{middlewares: mws}
}

// Middlewares returns the middlewares in execution order.
func (c *Chain) Middlewares() []Middleware {
	out := make([]Middleware, len(c.middlewares))
	copy(out, c.middlewares)
	return out
}

// Len returns the number of middlewares.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Then composes the chain around terminal. The first middleware is the
// outermost.
func (c *Chain) Then(terminal Handler) Handler {
	h := terminal
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = link(c.middlewares[i], h)
	}
	return h
}

// Run executes the chain for rc.
func (c *Chain) Run(rc *RequestContext, terminal Handler) (*Response, error) {
	return c.Then(terminal).Serve(rc)
}

func link(mw Middleware, next Handler) Handler {
	return HandlerFunc(func(rc *RequestContext) (*Response, error) {
		return mw.Intercept(rc, next)
	})
}
