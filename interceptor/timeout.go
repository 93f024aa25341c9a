package interceptor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bjaus/facade"
)

// ErrTimeout is the cancellation cause set by Timeout. Calls it interrupts
// fail with facade.ErrCanceled wrapping ErrTimeout.
var ErrTimeout = errors.New("facade call timed out")

// Timeout bounds eager single-recipient calls (Publish with one handler,
// PublishAsync with one handler, Send and SendAsync). Handlers observe the
// deadline through ctx; awaiting an asynchronous result stops at the
// deadline. Streams, aggregated queries and Route pass through unchanged.
type Timeout struct {
	facade.Passthrough

	d time.Duration
}

// NewTimeout creates a Timeout interceptor. A non-positive d disables it.
func NewTimeout(d time.Duration) *Timeout {
	return &Timeout{d: d}
}

// InterceptAction implements facade.ActionInterceptor.
func (t *Timeout) InterceptAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	ctx, cancel := t.bound(ctx, inv)
	defer cancel()
	return next(ctx)
}

// InterceptAsyncAction implements facade.AsyncActionInterceptor.
func (t *Timeout) InterceptAsyncAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	ctx, cancel := t.bound(ctx, inv)
	defer cancel()
	return next(ctx)
}

// InterceptResult implements facade.ResultInterceptor.
func (t *Timeout) InterceptResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	ctx, cancel := t.bound(ctx, inv)
	defer cancel()
	return next(ctx)
}

// InterceptAsyncResult implements facade.AsyncResultInterceptor.
func (t *Timeout) InterceptAsyncResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	ctx, cancel := t.bound(ctx, inv)
	defer cancel()
	return next(ctx)
}

func (t *Timeout) bound(ctx context.Context, inv *facade.Invocation) (context.Context, context.CancelFunc) {
	if t.d <= 0 || !singleRecipient(inv) {
		return ctx, func() {}
	}
	return context.WithTimeoutCause(ctx, t.d, fmt.Errorf("%w after %s", ErrTimeout, t.d))
}
