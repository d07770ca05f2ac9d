package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bkr/apigateway/internal/config"
	"github.com/bkr/apigateway/internal/observability"
)

// Listener defaults used when the configuration leaves a timeout unset.
const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 30 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	maxHeaderBytes           = 1 << 20 // 1MB

	// writeTimeoutMargin is added to the longest upstream timeout when the
	// public write timeout is derived.
	writeTimeoutMargin = 5 * time.Second
)

// ListenerConfig configures a single HTTP listener.
type ListenerConfig struct {
	Name              string
	Address           string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// publicListenerConfig converts the public listener settings. An unset
// write timeout is derived from the longest upstream timeout.
func publicListenerConfig(cfg *config.GatewayConfig) ListenerConfig {
	lc := listenerConfigFrom(ListenerPublic, cfg.Listen)
	if lc.WriteTimeout <= 0 {
		lc.WriteTimeout = cfg.MaxUpstreamTimeout() + writeTimeoutMargin
	}
	return lc
}

// listenerConfigFrom converts listener settings.
func listenerConfigFrom(name string, cfg config.ListenConfig) ListenerConfig {
	return ListenerConfig{
		Name:              name,
		Address:           cfg.Address,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.Duration(),
		ReadTimeout:       cfg.ReadTimeout.Duration(),
		WriteTimeout:      cfg.WriteTimeout.Duration(),
		IdleTimeout:       cfg.IdleTimeout.Duration(),
	}
}

// Listener represents an HTTP listener.
type Listener struct {
	config  ListenerConfig
	server  *http.Server
	handler http.Handler
	logger  observability.Logger
	running atomic.Bool

	mu   sync.RWMutex
	addr net.Addr
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a new listener.
func NewListener(cfg ListenerConfig, handler http.Handler, opts ...ListenerOption) (*Listener, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("listener %s: address is required", cfg.Name)
	}

	l := &Listener{
		config:  cfg,
		handler: handler,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Name returns the listener name.
func (l *Listener) Name() string {
	return l.config.Name
}

// Address returns the configured address.
func (l *Listener) Address() string {
	return l.config.Address
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.addr
}

// IsRunning reports whether the listener is serving.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}

// Start starts the listener.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Load() {
		return fmt.Errorf("listener %s is already running", l.config.Name)
	}

	l.server = &http.Server{
		Handler:           l.handler,
		ReadHeaderTimeout: orDefault(l.config.ReadHeaderTimeout, defaultReadHeaderTimeout),
		ReadTimeout:       orDefault(l.config.ReadTimeout, defaultReadTimeout),
		WriteTimeout:      orDefault(l.config.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:       orDefault(l.config.IdleTimeout, defaultIdleTimeout),
		MaxHeaderBytes:    maxHeaderBytes,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.config.Address, err)
	}

	l.mu.Lock()
	l.addr = ln.Addr()
	l.mu.Unlock()

	l.running.Store(true)

	l.logger.Info("listener started",
		observability.String("name", l.config.Name),
		observability.String("address", ln.Addr().String()),
	)

	go l.serve(ln)

	return nil
}

// serve starts serving requests.
func (l *Listener) serve(ln net.Listener) {
	if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("listener error",
			observability.String("name", l.config.Name),
			observability.Error(err),
		)
	}
	l.running.Store(false)
}

// Stop stops the listener gracefully, closing it when ctx expires first.
func (l *Listener) Stop(ctx context.Context) error {
	if l.server == nil {
		return nil
	}

	l.logger.Info("stopping listener",
		observability.String("name", l.config.Name),
	)

	if err := l.server.Shutdown(ctx); err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close listener: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown listener gracefully: %w", err)
	}

	l.running.Store(false)

	l.logger.Info("listener stopped",
		observability.String("name", l.config.Name),
	)

	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
