package interceptor

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bjaus/facade"
	"go.uber.org/zap"
)

// Retry re-runs failed eager single-recipient calls with a fixed delay. The
// dispatcher itself never retries; install Retry only for idempotent
// handlers.
//
// Cancellation, no-match and shape-mismatch failures are never retried.
// Streams, aggregated queries and Route pass through unchanged.
type Retry struct {
	facade.Passthrough

	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

// NewRetry creates a Retry interceptor making at most attempts tries. An
// attempts value below 2 disables retrying.
func NewRetry(attempts uint, delay time.Duration, logger *zap.Logger) *Retry {
	return &Retry{
		attempts: attempts,
		delay:    delay,
		logger:   logger.Named("retry_interceptor"),
	}
}

// InterceptAction implements facade.ActionInterceptor.
func (r *Retry) InterceptAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	return r.do(ctx, inv, func() error {
		return next(ctx)
	})
}

// InterceptAsyncAction implements facade.AsyncActionInterceptor.
func (r *Retry) InterceptAsyncAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	return r.do(ctx, inv, func() error {
		return next(ctx)
	})
}

// InterceptResult implements facade.ResultInterceptor.
func (r *Retry) InterceptResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	var v any
	err := r.do(ctx, inv, func() (err error) {
		v, err = next(ctx)
		return err
	})
	return v, err
}

// InterceptAsyncResult implements facade.AsyncResultInterceptor.
func (r *Retry) InterceptAsyncResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	var v any
	err := r.do(ctx, inv, func() (err error) {
		v, err = next(ctx)
		return err
	})
	return v, err
}

func (r *Retry) do(ctx context.Context, inv *facade.Invocation, fn func() error) error {
	if r.attempts < 2 || !singleRecipient(inv) {
		return fn()
	}

	return retry.Do(
		fn,
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn("retrying facade invocation",
				zap.String("invocation_id", inv.ID),
				zap.String("method", inv.Method),
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", r.attempts),
				zap.Any("error", errorObject(err)),
			)
		}),
		retry.Context(ctx),
	)
}

func retryable(err error) bool {
	return !facade.IsCanceled(err) &&
		!errors.Is(err, facade.ErrNoMatchingEntryPoint) &&
		!errors.Is(err, facade.ErrReturnShapeMismatch)
}
