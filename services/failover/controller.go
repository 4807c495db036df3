package failover

import (
	"context"
	"fmt"
	"time"

	"github.com/modelrelay/modelrelay/services/providers"
	"go.uber.org/zap"
)

const defaultMaxAttempts = 3 // primary + 2 fallbacks

// Attempt records one failed provider try within a logical request. Attempts
// are ephemeral; they surface only in logs and failure diagnostics.
type Attempt struct {
	ProviderID string `json:"provider_id"`
	Error      string `json:"error"`
	LatencyMs  int64  `json:"latency_ms"`
}

// AggregateError reports that every candidate failed. It carries the last
// error plus the full attempt list; callers surface it as a 503-class
// condition, never as a silent empty success.
type AggregateError struct {
	Attempts []Attempt
	LastErr  error
}

// Error implements the error interface
func (e *AggregateError) Error() string {
	return fmt.Sprintf("all %d providers failed, last error: %v", len(e.Attempts), e.LastErr)
}

// Unwrap implements error unwrapping
func (e *AggregateError) Unwrap() error {
	return e.LastErr
}

// Executor issues one provider call. Implemented by providers.Executor.
type Executor interface {
	Execute(ctx context.Context, d providers.Descriptor, spec providers.RequestSpec) (*providers.CanonicalResult, error)
}

// Result is a successful completion together with the failed attempts that
// preceded it
type Result struct {
	Canonical *providers.CanonicalResult
	Attempts  []Attempt
}

// Controller advances through a fallback chain when provider calls fail.
// This is cross-provider failover: it never retries the same provider twice
// within one logical request and applies no backoff between attempts.
type Controller struct {
	executor    Executor
	maxAttempts int
	logger      *zap.Logger
}

// ControllerOption customizes a Controller
type ControllerOption func(*Controller)

// WithMaxAttempts caps the total number of providers tried (primary
// included)
func WithMaxAttempts(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// NewController creates a fallback controller
func NewController(executor Executor, logger *zap.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		executor:    executor,
		maxAttempts: defaultMaxAttempts,
		logger:      logger,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// ExecuteWithFallback attempts the primary provider first, then each chain
// candidate in order, skipping providers already attempted. Provider-level
// errors never propagate past this boundary: every failure either advances
// the chain or lands in the returned AggregateError.
func (c *Controller) ExecuteWithFallback(ctx context.Context, spec providers.RequestSpec, primary providers.Descriptor, chain []providers.Descriptor) (*Result, error) {
	candidates := make([]providers.Descriptor, 0, 1+len(chain))
	candidates = append(candidates, primary)

	tried := map[string]bool{primary.ID: true}
	for _, d := range chain {
		if tried[d.ID] {
			continue
		}
		tried[d.ID] = true
		candidates = append(candidates, d)
	}

	if len(candidates) > c.maxAttempts {
		candidates = candidates[:c.maxAttempts]
	}

	var attempts []Attempt
	var lastErr error

	for _, d := range candidates {
		if err := ctx.Err(); err != nil {
			// caller-level timeout or cancellation ends the chain
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		start := time.Now()
		result, err := c.executor.Execute(ctx, d, spec)
		if err == nil {
			if len(attempts) > 0 {
				c.logger.Info("request recovered via fallback",
					zap.String("provider", d.ID),
					zap.Int("failed_attempts", len(attempts)))
			}
			return &Result{Canonical: result, Attempts: attempts}, nil
		}

		latency := time.Since(start)
		attempts = append(attempts, Attempt{
			ProviderID: d.ID,
			Error:      err.Error(),
			LatencyMs:  latency.Milliseconds(),
		})
		lastErr = err

		c.logger.Warn("provider attempt failed, advancing fallback chain",
			zap.String("provider", d.ID),
			zap.Duration("latency", latency),
			zap.Error(err))
	}

	return nil, &AggregateError{Attempts: attempts, LastErr: lastErr}
}
