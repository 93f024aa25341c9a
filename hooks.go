package facade

import (
	"context"
	"time"
)

// OnDispatchFunc is called after handlers are resolved, just before the
// interceptor chain runs.
type OnDispatchFunc func(ctx context.Context, inv *Invocation)

// OnSuccessFunc is called after an invocation completes without error.
type OnSuccessFunc func(ctx context.Context, inv *Invocation, duration time.Duration)

// OnFailureFunc is called after an invocation fails or is canceled.
type OnFailureFunc func(ctx context.Context, inv *Invocation, err error, duration time.Duration)

// OnNoMatchFunc is called when no entry point matches the arguments. It only
// observes: the failure is always returned to the caller.
type OnNoMatchFunc func(ctx context.Context, facade string, op Operation, args Arguments)

// hooks holds all configured hook functions.
type hooks struct {
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onFailure  []OnFailureFunc
	onNoMatch  []OnNoMatchFunc
}

// WithOnDispatch adds a hook called just before the interceptor chain runs.
// Multiple hooks are called in order.
//
// Example:
//
//	facade.WithOnDispatch(func(ctx context.Context, inv *facade.Invocation) {
//	    logger.Debug("dispatching", zap.String("method", inv.Method))
//	})
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onDispatch = append(d.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after an invocation succeeds. For
// streams and aggregated queries it runs once the sequence is exhausted or
// abandoned.
//
// Example:
//
//	facade.WithOnSuccess(func(ctx context.Context, inv *facade.Invocation, d time.Duration) {
//	    metrics.Timing("facade.success", d, "method:"+inv.Method)
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onSuccess = append(d.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after an invocation fails, including
// shape mismatches and cancellation. Multiple hooks are called in order.
func WithOnFailure(fn OnFailureFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onFailure = append(d.hooks.onFailure, fn)
	}
}

// WithOnNoMatch adds a hook called when no entry point matches.
//
// Example:
//
//	facade.WithOnNoMatch(func(ctx context.Context, name string, op facade.Operation, args facade.Arguments) {
//	    logger.Warn("no handler", zap.String("facade", name))
//	})
func WithOnNoMatch(fn OnNoMatchFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onNoMatch = append(d.hooks.onNoMatch, fn)
	}
}

func (h *hooks) callOnDispatch(ctx context.Context, inv *Invocation) {
	for _, fn := range h.onDispatch {
		fn(ctx, inv)
	}
}

func (h *hooks) callOnComplete(ctx context.Context, inv *Invocation, err error, duration time.Duration) {
	if err != nil {
		for _, fn := range h.onFailure {
			fn(ctx, inv, err, duration)
		}
		return
	}
	for _, fn := range h.onSuccess {
		fn(ctx, inv, duration)
	}
}

func (h *hooks) callOnNoMatch(ctx context.Context, facade string, op Operation, args Arguments) {
	for _, fn := range h.onNoMatch {
		fn(ctx, facade, op, args)
	}
}
