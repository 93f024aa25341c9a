package facade

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ScopedDispatcher wraps a Dispatcher so every call runs inside its own
// dependency scope. Services are resolved from the scope, never from a
// longer-lived container.
//
// Publish, Invoke and Route open a Scope closed when the call returns.
// PublishAsync and InvokeAsync open an AsyncScope shut down once the awaited
// work completes. Stream, Aggregate and AggregateAsync keep their AsyncScope
// open until the returned sequence is exhausted, abandoned, or its context
// ends before it is ever ranged. Scopes are closed exactly once, also when
// the call fails or panics, and close errors are joined with the call error.
type ScopedDispatcher struct {
	inner  *Dispatcher
	scopes ScopeFactory
}

// NewScoped creates a ScopedDispatcher running d inside scopes from scopes.
func NewScoped(d *Dispatcher, scopes ScopeFactory) *ScopedDispatcher {
	return &ScopedDispatcher{inner: d, scopes: scopes}
}

// openScope does not open anything when ctx is already done.
func (s *ScopedDispatcher) openScope(ctx context.Context) (*Dispatcher, Scope, error) {
	if err := checkCanceled(ctx); err != nil {
		return nil, nil, err
	}
	scope, err := s.scopes.NewScope(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open scope: %w", err)
	}
	return s.inner.withServices(scope), scope, nil
}

func (s *ScopedDispatcher) openAsyncScope(ctx context.Context) (*Dispatcher, AsyncScope, error) {
	if err := checkCanceled(ctx); err != nil {
		return nil, nil, err
	}
	scope, err := s.scopes.NewAsyncScope(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open async scope: %w", err)
	}
	return s.inner.withServices(scope), scope, nil
}

func shutdown(ctx context.Context, scope AsyncScope) error {
	return scope.Shutdown(context.WithoutCancel(ctx))
}

// Publish implements Facade.
func (s *ScopedDispatcher) Publish(ctx context.Context, args Arguments) (err error) {
	d, scope, err := s.openScope(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, scope.Close()) }()

	return d.Publish(ctx, args)
}

// PublishAsync implements Facade. Handlers beyond the awaited one may still
// be running when the scope shuts down.
func (s *ScopedDispatcher) PublishAsync(ctx context.Context, args Arguments) (err error) {
	d, scope, err := s.openAsyncScope(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, shutdown(ctx, scope)) }()

	return d.PublishAsync(ctx, args)
}

// Invoke implements Facade.
func (s *ScopedDispatcher) Invoke(ctx context.Context, args Arguments) (any, error) {
	return s.invokeAs(ctx, OpSend, args, nil)
}

// InvokeAsync implements Facade.
func (s *ScopedDispatcher) InvokeAsync(ctx context.Context, args Arguments) (any, error) {
	return s.invokeAs(ctx, OpSendAsync, args, nil)
}

func (s *ScopedDispatcher) invokeAs(ctx context.Context, op Operation, args Arguments, want reflect.Type) (any, error) {
	if op == OpSendAsync {
		return s.invokeAsync(ctx, args, want)
	}
	return s.invoke(ctx, args, want)
}

func (s *ScopedDispatcher) invoke(ctx context.Context, args Arguments, want reflect.Type) (v any, err error) {
	d, scope, err := s.openScope(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, scope.Close()) }()

	return d.invoke(ctx, args, want)
}

func (s *ScopedDispatcher) invokeAsync(ctx context.Context, args Arguments, want reflect.Type) (v any, err error) {
	d, scope, err := s.openAsyncScope(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, shutdown(ctx, scope)) }()

	return d.invokeAsync(ctx, args, want)
}

// Route implements Facade. The scope is closed when Route returns, so raw
// asynchronous or stream values must not depend on scoped services after
// that.
func (s *ScopedDispatcher) Route(ctx context.Context, args Arguments) (r Routed, err error) {
	d, scope, err := s.openScope(ctx)
	if err != nil {
		return Routed{}, err
	}
	defer func() { err = errors.Join(err, scope.Close()) }()

	return d.Route(ctx, args)
}

// Stream implements Facade.
func (s *ScopedDispatcher) Stream(ctx context.Context, args Arguments) (Sequence, error) {
	d, scope, err := s.openAsyncScope(ctx)
	if err != nil {
		return Sequence{}, err
	}

	l := s.lease(ctx, scope)
	seq, err := l.hold(func() (Sequence, error) {
		return d.Stream(ctx, args)
	})
	if err != nil {
		return Sequence{}, err
	}

	abandon := seq.abandon
	if abandon != nil {
		l.abandon.Store(&abandon)
	}
	seq.Items = l.wrap(seq.Items)
	seq.abandon = func(err error) {
		if abandon != nil {
			abandon(err)
		}
		l.end()
	}
	return seq, nil
}

// Aggregate implements Facade.
func (s *ScopedDispatcher) Aggregate(ctx context.Context, args Arguments) (iter.Seq2[any, error], error) {
	return s.aggregateAs(ctx, OpAggregate, args, nil)
}

// AggregateAsync implements Facade.
func (s *ScopedDispatcher) AggregateAsync(ctx context.Context, args Arguments) (iter.Seq2[any, error], error) {
	return s.aggregateAs(ctx, OpAggregateAsync, args, nil)
}

func (s *ScopedDispatcher) aggregateAs(ctx context.Context, op Operation, args Arguments, want reflect.Type) (iter.Seq2[any, error], error) {
	d, scope, err := s.openAsyncScope(ctx)
	if err != nil {
		return nil, err
	}

	l := s.lease(ctx, scope)
	seq, err := l.hold(func() (Sequence, error) {
		items, err := d.aggregateAs(ctx, op, args, want)
		return Sequence{Items: items}, err
	})
	if err != nil {
		return nil, err
	}
	return l.wrap(seq.Items), nil
}

// lease owns an AsyncScope whose lifetime follows a lazy sequence.
type lease struct {
	release func() error
	started atomic.Bool
	stop    func() bool
	abandon atomic.Pointer[func(err error)]
	logger  *zap.Logger
}

func (s *ScopedDispatcher) lease(ctx context.Context, scope AsyncScope) *lease {
	l := &lease{
		release: sync.OnceValue(func() error {
			return shutdown(ctx, scope)
		}),
		logger: s.inner.logger,
	}
	l.stop = context.AfterFunc(ctx, func() {
		if l.started.Load() {
			return
		}
		if abandon := l.abandon.Load(); abandon != nil {
			(*abandon)(canceled(ctx))
		}
		l.end()
	})
	return l
}

// hold runs fn and releases the scope if fn fails or panics.
func (l *lease) hold(fn func() (Sequence, error)) (seq Sequence, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.stop()
			_ = l.release()
			panic(r)
		}
	}()

	seq, err = fn()
	if err != nil {
		l.stop()
		return Sequence{}, errors.Join(err, l.release())
	}
	return seq, nil
}

// end releases the scope, logging a failed shutdown since no caller is left
// to receive it.
func (l *lease) end() {
	l.stop()
	if err := l.release(); err != nil {
		l.logger.Warn("scope shutdown failed", zap.Error(err))
	}
}

// wrap releases the scope when seq finishes. A shutdown error is yielded as a
// final element when the consumer ranged to the end, and logged otherwise.
func (l *lease) wrap(seq iter.Seq2[any, error]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		l.started.Store(true)
		l.stop()

		exhausted := false
		defer func() {
			if !exhausted {
				l.end()
			}
		}()

		more := true
		seq(func(v any, err error) bool {
			more = yield(v, err)
			return more
		})
		if !more {
			return
		}

		exhausted = true
		if err := l.release(); err != nil {
			yield(nil, err)
		}
	}
}
