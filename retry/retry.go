// Package retry wraps calls to the cluster with a bounded, fixed-delay retry.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultRetries = 3
	DefaultDelay   = 60 * time.Second
)

// Policy retries operations failing with a retryable error. Retries is the number of
// additional attempts after the first call.
type Policy struct {
	Retries   int
	Delay     time.Duration
	Retryable func(error) bool
	Logger    *zap.Logger
	// OnRetry is called before every wait, e.g. to count retries.
	OnRetry func(op string)
}

// ExhaustedError is returned once all attempts failed with retryable errors.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs fn until it succeeds, fails permanently or the attempts are used up.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	retries := p.Retries
	if retries < 0 {
		retries = 0
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(retries))
	b = backoff.WithContext(b, ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := fn(ctx)
		if err != nil && (p.Retryable == nil || !p.Retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		logger.Warn("retrying",
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if p.OnRetry != nil {
			p.OnRetry(op)
		}
	})
	if err == nil {
		return nil
	}

	if ctx.Err() == nil && p.Retryable != nil && p.Retryable(err) {
		return &ExhaustedError{Op: op, Attempts: attempts, Err: err}
	}
	return err
}

// Call is Do for functions returning a value.
func Call[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
