// Package health provides periodic health checks with optional recovery.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/volo-kola/kola/internal/infra/metrics"
)

// DefaultInterval is how often Run re-evaluates every check.
const DefaultInterval = 30 * time.Second

// Pinger is anything with a context-aware liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// NewChecker creates a checker with a single "store" check that pings the
// learner store.
func NewChecker(store Pinger, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{
		interval: DefaultInterval,
		timeout:  5 * time.Second,
		log:      log,
		checks: []Check{
			{
				Name:    "store",
				CheckFn: store.Ping,
			},
		},
	}
}

// SetInterval changes how often Run re-evaluates. Call before Run.
func (c *Checker) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// Add registers another check. Not safe to call once Run has started.
func (c *Checker) Add(check Check) {
	c.checks = append(c.checks, check)
}

// Run starts the health check loop and blocks until ctx is done.
func (c *Checker) Run(ctx context.Context) error {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce evaluates every check and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{Name: check.Name, CheckedAt: time.Now()}

		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := check.CheckFn(checkCtx)
		cancel()

		if err != nil {
			s.Error = err.Error()
			metrics.HealthCheckFailures.WithLabelValues(check.Name).Inc()
			c.log.Warn("health check failed", zap.String("check", check.Name), zap.Error(err))
			if check.RecoverFn != nil {
				if rerr := check.RecoverFn(ctx); rerr != nil {
					c.log.Error("health recovery failed", zap.String("check", check.Name), zap.Error(rerr))
				}
			}
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true once every check has run and passed.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.statuses) == 0 {
		return false
	}
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
