package health

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bkr/apigateway/internal/observability"
)

// Status values.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDraining = "draining"
)

// DefaultCheckTimeout bounds one readiness evaluation.
const DefaultCheckTimeout = 5 * time.Second

// Check is a named readiness check.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

type checkFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (c *checkFunc) Name() string                    { return c.name }
func (c *checkFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// NewCheck creates a Check from a function.
func NewCheck(name string, fn func(ctx context.Context) error) Check {
	return &checkFunc{name: name, fn: fn}
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// Report is the readiness or health document.
type Report struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Uptime    string                  `json:"uptime,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]*CheckResult `json:"checks,omitempty"`
}

// Checker aggregates readiness checks.
type Checker struct {
	version   string
	startTime time.Time
	timeout   time.Duration
	logger    observability.Logger
	draining  atomic.Bool

	mu     sync.RWMutex
	checks []Check
}

// Option is a functional option for Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithTimeout bounds one readiness evaluation.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.timeout = d
	}
}

// NewChecker creates a Checker.
func NewChecker(version string, opts ...Option) *Checker {
	c := &Checker{
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultCheckTimeout,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a check.
func (c *Checker) Register(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
}

// SetDraining marks the gateway as shutting down; readiness fails from
// then on.
func (c *Checker) SetDraining(draining bool) {
	c.draining.Store(draining)
}

// Draining reports whether SetDraining(true) was called.
func (c *Checker) Draining() bool {
	return c.draining.Load()
}

// Uptime returns the time since the checker was created.
func (c *Checker) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Readiness runs all checks concurrently. It fails while draining.
func (c *Checker) Readiness(ctx context.Context) *Report {
	return c.evaluate(ctx, true)
}

// Health runs all checks concurrently regardless of draining.
func (c *Checker) Health(ctx context.Context) *Report {
	return c.evaluate(ctx, false)
}

func (c *Checker) evaluate(ctx context.Context, failWhenDraining bool) *Report {
	report := &Report{
		Status:    StatusOK,
		Version:   c.version,
		Uptime:    c.Uptime().Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]*CheckResult),
	}

	if failWhenDraining && c.Draining() {
		report.Status = StatusDraining
		return report
	}

	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	sort.SliceStable(checks, func(i, j int) bool { return checks[i].Name() < checks[j].Name() })

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make([]*CheckResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			start := time.Now()
			err := check.Check(ctx)

			result := &CheckResult{Status: StatusOK, Duration: time.Since(start).String()}
			if err != nil {
				result.Status = StatusError
				result.Error = err.Error()
				c.logger.Warn("health check failed",
					observability.String("check", check.Name()),
					observability.Error(err),
				)
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	for i, check := range checks {
		report.Checks[check.Name()] = results[i]
		if results[i].Status != StatusOK {
			report.Status = StatusError
		}
	}

	return report
}
