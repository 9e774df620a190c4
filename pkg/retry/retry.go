// Package retry provides bounded retry with exponential backoff and
// jitter for external-service calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// ErrMaxRetriesExceeded is returned when all attempts are exhausted
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy controls retry behavior
type Policy struct {
	MaxRetries    int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	JitterRange   float64 // fraction of the backoff, 0.1 = ±10%
	RetryableFunc func(error) bool
}

// Validate checks the policy for sane values
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.BaseBackoff <= 0 {
		return fmt.Errorf("base backoff must be positive, got %s", p.BaseBackoff)
	}
	if p.MaxBackoff < p.BaseBackoff {
		return fmt.Errorf("max backoff %s below base backoff %s", p.MaxBackoff, p.BaseBackoff)
	}
	return nil
}

// DefaultPolicy returns a policy suitable for RPC round trips
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  8 * time.Second,
		JitterRange: 0.1,
	}
}

// Retrier executes operations under a retry policy
type Retrier struct {
	policy Policy
	logger *zap.Logger
}

// NewRetrier creates a retrier; panics on an invalid policy since that is
// a programming error, not a runtime condition.
func NewRetrier(policy Policy, logger *zap.Logger) *Retrier {
	if err := policy.Validate(); err != nil {
		panic(fmt.Sprintf("invalid retry policy: %v", err))
	}
	return &Retrier{policy: policy, logger: logger}
}

// Do executes operation, retrying retryable failures with backoff
func (r *Retrier) Do(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retries",
					zap.Int("attempt", attempt))
			}
			return nil
		}

		if !r.isRetryable(lastErr) {
			return lastErr
		}

		if attempt >= r.policy.MaxRetries {
			break
		}

		backoff := r.backoff(attempt + 1)
		r.logger.Debug("Retrying operation",
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func (r *Retrier) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if r.policy.RetryableFunc != nil {
		return r.policy.RetryableFunc(err)
	}
	return true
}

// backoff computes exponential backoff with jitter for the given attempt
func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.policy.BaseBackoff << uint(attempt-1)
	if d > r.policy.MaxBackoff || d <= 0 {
		d = r.policy.MaxBackoff
	}
	if r.policy.JitterRange > 0 {
		jitter := (rand.Float64()*2 - 1) * r.policy.JitterRange * float64(d)
		d += time.Duration(jitter)
	}
	return d
}

// Do is a package-level helper for one-off retries
func Do(ctx context.Context, policy Policy, logger *zap.Logger, operation func() error) error {
	return NewRetrier(policy, logger).Do(ctx, operation)
}
