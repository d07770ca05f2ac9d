package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bkr/apigateway/internal/config"
	"github.com/bkr/apigateway/internal/observability"
)

// Listener names.
const (
	ListenerPublic = "public"
	ListenerAdmin  = "admin"
)

// DefaultShutdownTimeout bounds Stop when the caller's context has no
// deadline.
const DefaultShutdownTimeout = 30 * time.Second

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway owns the public listener and the optional admin listener.
type Gateway struct {
	config       *config.GatewayConfig
	logger       observability.Logger
	handler      http.Handler
	adminHandler http.Handler
	engine       *gin.Engine
	public       *Listener
	admin        *Listener
	state        atomic.Int32
	startTime    atomic.Int64
	mu           sync.RWMutex

	shutdownTimeout time.Duration
	onStopping      []func()
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// WithAdminHandler serves handler on the admin address when the admin
// listener is enabled.
func WithAdminHandler(handler http.Handler) Option {
	return func(g *Gateway) {
		g.adminHandler = handler
	}
}

// WithStoppingHook registers fn to run when Stop begins, before the
// listeners drain.
func WithStoppingHook(fn func()) Option {
	return func(g *Gateway) {
		g.onStopping = append(g.onStopping, fn)
	}
}

// New creates a gateway serving handler for every request.
func New(cfg *config.GatewayConfig, handler http.Handler, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	g := &Gateway{
		config:          cfg,
		handler:         handler,
		logger:          observability.NopLogger(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	if d := cfg.Listen.ShutdownTimeout.Duration(); d > 0 {
		g.shutdownTimeout = d
	}

	for _, opt := range opts {
		opt(g)
	}

	g.state.Store(int32(StateStopped))

	return g, nil
}

// Start binds the listeners and begins serving.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	g.logger.Info("starting gateway",
		observability.String("address", g.config.Listen.Address),
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.NoRoute(gin.WrapH(g.handler))

	listeners, err := g.createListeners(engine)
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to create listeners: %w", err)
	}

	for i, l := range listeners {
		if err := l.Start(ctx); err != nil {
			g.stopListeners(ctx, listeners[:i])
			g.state.Store(int32(StateStopped))
			return fmt.Errorf("failed to start listener %s: %w", l.Name(), err)
		}
	}

	g.mu.Lock()
	g.engine = engine
	g.public = listeners[0]
	if len(listeners) > 1 {
		g.admin = listeners[1]
	} else {
		g.admin = nil
	}
	g.mu.Unlock()

	g.startTime.Store(time.Now().UnixNano())
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.Int("listeners", len(listeners)),
	)

	return nil
}

// Stop drains in-flight requests and closes the listeners.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}

	g.logger.Info("stopping gateway")

	for _, fn := range g.onStopping {
		fn()
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	g.mu.RLock()
	listeners := []*Listener{g.public}
	if g.admin != nil {
		listeners = append(listeners, g.admin)
	}
	g.mu.RUnlock()

	g.stopListeners(ctx, listeners)

	g.startTime.Store(0)
	g.state.Store(int32(StateStopped))

	g.logger.Info("gateway stopped")

	return nil
}

// State returns the current state of the gateway.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning reports whether the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns how long the gateway has been running.
func (g *Gateway) Uptime() time.Duration {
	started := g.startTime.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started))
}

// Engine returns the gin engine of the current run.
func (g *Gateway) Engine() *gin.Engine {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine
}

// Addr returns the bound public address, or nil when not started.
func (g *Gateway) Addr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.public == nil {
		return nil
	}
	return g.public.Addr()
}

// AdminAddr returns the bound admin address, or nil when there is none.
func (g *Gateway) AdminAddr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.admin == nil {
		return nil
	}
	return g.admin.Addr()
}

// createListeners returns the public listener first.
func (g *Gateway) createListeners(engine *gin.Engine) ([]*Listener, error) {
	public, err := NewListener(
		publicListenerConfig(g.config),
		engine,
		WithListenerLogger(g.logger),
	)
	if err != nil {
		return nil, err
	}
	listeners := []*Listener{public}

	if g.adminHandler == nil || !g.config.Admin.IsEnabled() {
		return listeners, nil
	}

	adminCfg := ListenerConfig{Name: ListenerAdmin, Address: g.config.Admin.Address}
	admin, err := NewListener(adminCfg, g.adminHandler, WithListenerLogger(g.logger))
	if err != nil {
		return nil, err
	}

	return append(listeners, admin), nil
}

func (g *Gateway) stopListeners(ctx context.Context, listeners []*Listener) {
	var wg sync.WaitGroup

	for _, listener := range listeners {
		wg.Add(1)
		go func(l *Listener) {
			defer wg.Done()
			if err := l.Stop(ctx); err != nil {
				g.logger.Error("failed to stop listener",
					observability.String("name", l.Name()),
					observability.Error(err),
				)
			}
		}(listener)
	}

	wg.Wait()
}
