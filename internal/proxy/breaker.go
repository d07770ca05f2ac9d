package proxy

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bkr/apigateway/internal/observability"
)

// BreakerConfig configures the per-target circuit breaker.
type BreakerConfig struct {
	Enabled bool
	// FailureThreshold is the number of consecutive failed attempts that
	// opens the breaker.
	FailureThreshold int
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of trial requests allowed while half-open.
	HalfOpenRequests int
}

// breakerSet lazily creates one breaker per target.
type breakerSet struct {
	cfg     BreakerConfig
	logger  observability.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.TwoStepCircuitBreaker
}

func newBreakerSet(cfg BreakerConfig, logger observability.Logger, metrics *observability.Metrics) *breakerSet {
	if !cfg.Enabled {
		return nil
	}
	return &breakerSet{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		breakers: make(map[string]*gobreaker.TwoStepCircuitBreaker),
	}
}

// allow asks target's breaker for permission. The returned done reports
// the attempt outcome. A nil set always allows.
func (s *breakerSet) allow(target string) (func(success bool), error) {
	if s == nil {
		return func(bool) {}, nil
	}

	done, err := s.get(target).Allow()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, target, err)
	}
	return done, nil
}

func (s *breakerSet) get(target string) *gobreaker.TwoStepCircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[target]
	if !ok {
		cb = gobreaker.NewTwoStepCircuitBreaker(s.settings(target))
		s.breakers[target] = cb
		s.metrics.SetCircuitBreakerState(target, int(gobreaker.StateClosed))
	}
	return cb
}

func (s *breakerSet) settings(target string) gobreaker.Settings {
	threshold := safeIntToUint32(s.cfg.FailureThreshold)
	if threshold == 0 {
		threshold = 1
	}

	return gobreaker.Settings{
		Name:        target,
		MaxRequests: safeIntToUint32(s.cfg.HalfOpenRequests),
		Timeout:     s.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			s.logger.Info("circuit breaker state change",
				observability.String("target", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			s.metrics.SetCircuitBreakerState(name, int(to))
		},
	}
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
