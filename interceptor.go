package facade

import (
	"context"
	"fmt"
)

// ActionNext continues a void-shaped chain. Called with no handlers it passes
// the current list through. Called with a spread slice it replaces the list
// for the rest of the chain, even when the slice is empty and nothing runs.
type ActionNext func(ctx context.Context, handlers ...Handler) error

// ResultNext continues a result-shaped chain and overrides the handler list
// the way ActionNext does. For single-recipient calls the value is the
// handler's result; for aggregated calls it is an iter.Seq2[any, error]
// evaluated lazily.
type ResultNext func(ctx context.Context, handlers ...Handler) (any, error)

// StreamNext continues a stream-shaped chain and overrides the handler list
// the way ActionNext does.
type StreamNext func(ctx context.Context, handlers ...Handler) (Sequence, error)

// ActionInterceptor wraps synchronous void dispatch (Publish).
type ActionInterceptor interface {
	InterceptAction(ctx context.Context, inv *Invocation, next ActionNext) error
}

// ResultInterceptor wraps synchronous result dispatch (Send, Aggregate,
// Route).
type ResultInterceptor interface {
	InterceptResult(ctx context.Context, inv *Invocation, next ResultNext) (any, error)
}

// AsyncActionInterceptor wraps asynchronous void dispatch (PublishAsync).
// next returns once the awaited handler has completed.
type AsyncActionInterceptor interface {
	InterceptAsyncAction(ctx context.Context, inv *Invocation, next ActionNext) error
}

// AsyncResultInterceptor wraps asynchronous result dispatch (SendAsync,
// AggregateAsync). For single-recipient calls next returns the awaited value.
type AsyncResultInterceptor interface {
	InterceptAsyncResult(ctx context.Context, inv *Invocation, next ResultNext) (any, error)
}

// StreamInterceptor wraps stream dispatch (CreateStream). The returned
// sequence is consumed after the interceptor returns; wrap Sequence.Items to
// observe consumption.
type StreamInterceptor interface {
	InterceptStream(ctx context.Context, inv *Invocation, next StreamNext) (Sequence, error)
}

// Interceptor is the composite role implementing all five shapes.
type Interceptor interface {
	ActionInterceptor
	ResultInterceptor
	AsyncActionInterceptor
	AsyncResultInterceptor
	StreamInterceptor
}

// Passthrough implements every role by calling next unchanged. Embed it to
// implement only the roles an interceptor cares about.
type Passthrough struct{}

// InterceptAction implements ActionInterceptor.
func (Passthrough) InterceptAction(ctx context.Context, _ *Invocation, next ActionNext) error {
	return next(ctx)
}

// InterceptResult implements ResultInterceptor.
func (Passthrough) InterceptResult(ctx context.Context, _ *Invocation, next ResultNext) (any, error) {
	return next(ctx)
}

// InterceptAsyncAction implements AsyncActionInterceptor.
func (Passthrough) InterceptAsyncAction(ctx context.Context, _ *Invocation, next ActionNext) error {
	return next(ctx)
}

// InterceptAsyncResult implements AsyncResultInterceptor.
func (Passthrough) InterceptAsyncResult(ctx context.Context, _ *Invocation, next ResultNext) (any, error) {
	return next(ctx)
}

// InterceptStream implements StreamInterceptor.
func (Passthrough) InterceptStream(ctx context.Context, _ *Invocation, next StreamNext) (Sequence, error) {
	return next(ctx)
}

// interceptors holds registered interceptors split by role, in registration
// order. The first registered runs outermost.
type interceptors struct {
	action      []ActionInterceptor
	result      []ResultInterceptor
	asyncAction []AsyncActionInterceptor
	asyncResult []AsyncResultInterceptor
	stream      []StreamInterceptor
}

// add registers i under every role it implements and panics when it
// implements none, since that is a configuration mistake.
func (ic *interceptors) add(i any) {
	matched := false
	if r, ok := i.(ActionInterceptor); ok {
		ic.action = append(ic.action, r)
		matched = true
	}
	if r, ok := i.(ResultInterceptor); ok {
		ic.result = append(ic.result, r)
		matched = true
	}
	if r, ok := i.(AsyncActionInterceptor); ok {
		ic.asyncAction = append(ic.asyncAction, r)
		matched = true
	}
	if r, ok := i.(AsyncResultInterceptor); ok {
		ic.asyncResult = append(ic.asyncResult, r)
		matched = true
	}
	if r, ok := i.(StreamInterceptor); ok {
		ic.stream = append(ic.stream, r)
		matched = true
	}
	if !matched {
		panic(fmt.Sprintf("facade: %T implements no interceptor role", i))
	}
}

// link is one interceptor adapted to a chain producing R. received is the
// handler list reaching it.
type link[R any] func(ctx context.Context, received []Handler, next func(ctx context.Context, handlers ...Handler) (R, error)) (R, error)

// chain composes links as nested delegates around terminal. Each link
// receives a next that forwards the list it was given unless called with an
// explicit replacement. A bare next(ctx) arrives as a nil override; a spread
// empty slice does not and leaves nothing to run.
func chain[R any](handlers []Handler, links []link[R], terminal func(ctx context.Context, handlers []Handler) (R, error)) func(ctx context.Context) (R, error) {
	call := terminal
	for i := len(links) - 1; i >= 0; i-- {
		l, inner := links[i], call
		call = func(ctx context.Context, received []Handler) (R, error) {
			return l(ctx, func(ctx context.Context, override ...Handler) (R, error) {
				if override != nil {
					return inner(ctx, override)
				}
				return inner(ctx, received)
			})
		}
	}
	return func(ctx context.Context) (R, error) {
		return call(ctx, handlers)
	}
}

type none struct{}

func actionLinks(inv *Invocation, ics []ActionInterceptor) []link[none] {
	links := make([]link[none], len(ics))
	for i, ic := range ics {
		links[i] = func(ctx context.Context, received []Handler, next func(context.Context, ...Handler) (none, error)) (none, error) {
			defer inv.enter(received)()
			return none{}, ic.InterceptAction(ctx, inv, func(ctx context.Context, hs ...Handler) error {
				_, err := next(ctx, hs...)
				return err
			})
		}
	}
	return links
}

func asyncActionLinks(inv *Invocation, ics []AsyncActionInterceptor) []link[none] {
	links := make([]link[none], len(ics))
	for i, ic := range ics {
		links[i] = func(ctx context.Context, received []Handler, next func(context.Context, ...Handler) (none, error)) (none, error) {
			defer inv.enter(received)()
			return none{}, ic.InterceptAsyncAction(ctx, inv, func(ctx context.Context, hs ...Handler) error {
				_, err := next(ctx, hs...)
				return err
			})
		}
	}
	return links
}

func resultLinks(inv *Invocation, ics []ResultInterceptor) []link[any] {
	links := make([]link[any], len(ics))
	for i, ic := range ics {
		links[i] = func(ctx context.Context, received []Handler, next func(context.Context, ...Handler) (any, error)) (any, error) {
			defer inv.enter(received)()
			return ic.InterceptResult(ctx, inv, next)
		}
	}
	return links
}

func asyncResultLinks(inv *Invocation, ics []AsyncResultInterceptor) []link[any] {
	links := make([]link[any], len(ics))
	for i, ic := range ics {
		links[i] = func(ctx context.Context, received []Handler, next func(context.Context, ...Handler) (any, error)) (any, error) {
			defer inv.enter(received)()
			return ic.InterceptAsyncResult(ctx, inv, next)
		}
	}
	return links
}

func streamLinks(inv *Invocation, ics []StreamInterceptor) []link[Sequence] {
	links := make([]link[Sequence], len(ics))
	for i, ic := range ics {
		links[i] = func(ctx context.Context, received []Handler, next func(context.Context, ...Handler) (Sequence, error)) (Sequence, error) {
			defer inv.enter(received)()
			return ic.InterceptStream(ctx, inv, next)
		}
	}
	return links
}
