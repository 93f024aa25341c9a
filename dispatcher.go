package facade

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Facade is the uniform entry surface over a set of handlers. Both
// *Dispatcher and *ScopedDispatcher implement it. Use the generic helpers
// Send, SendAsync, CreateStream, Query and QueryAsync for typed results.
type Facade interface {
	// Publish invokes every matching void or result handler in registration
	// order. It fails without invoking anything if any match is
	// asynchronous or a stream.
	Publish(ctx context.Context, args Arguments) error

	// PublishAsync invokes every matching handler except streams and waits
	// for the first asynchronous one to complete.
	PublishAsync(ctx context.Context, args Arguments) error

	// Invoke runs the first matching result handler and returns its value.
	Invoke(ctx context.Context, args Arguments) (any, error)

	// InvokeAsync runs the first matching result or async-result handler and
	// returns its awaited value.
	InvokeAsync(ctx context.Context, args Arguments) (any, error)

	// Stream runs the first matching stream handler.
	Stream(ctx context.Context, args Arguments) (Sequence, error)

	// Aggregate runs every matching result handler lazily, one per element.
	Aggregate(ctx context.Context, args Arguments) (iter.Seq2[any, error], error)

	// AggregateAsync runs every matching result or async-result handler
	// lazily, awaiting each element.
	AggregateAsync(ctx context.Context, args Arguments) (iter.Seq2[any, error], error)

	// Route runs the first matching handler of any shape and returns its raw
	// value tagged with the shape.
	Route(ctx context.Context, args Arguments) (Routed, error)
}

// Routed is the shape-agnostic result of Route. Value is raw: an Awaitable
// for asynchronous shapes, an iter.Seq2[any, error] for streams and nil for
// void handlers.
type Routed struct {
	Shape ReturnShape
	Type  reflect.Type
	Value any
}

// Dispatcher matches calls to entry points and invokes them.
//
// Usage:
//  1. Build entry points with NewAction, NewFunc, NewAsyncAction,
//     NewAsyncFunc or NewStream
//  2. Create a dispatcher with New, or NewFacade over a Registry
//  3. Call Publish, Send, SendAsync, CreateStream, Query or Route
//
// Dispatcher holds no per-call state and is safe for concurrent use. Every
// call gets its own Invocation and handler list.
type Dispatcher struct {
	facade       string
	entries      []*EntryPoint
	router       Router
	binding      *Binding
	services     Resolver
	interceptors interceptors
	aggregation  AggregationStrategy
	hooks        hooks
	logger       *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// New creates a Dispatcher over entries, which are matched in the given
// order.
//
// Example:
//
//	d := facade.New(entries,
//	    facade.WithServices(services),
//	    facade.WithInterceptor(interceptor.NewLogging(logger)),
//	)
func New(entries []*EntryPoint, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		entries: slices.Clone(entries),
		binding: NewBinding(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewFacade creates a Dispatcher over the entry points registered under name
// in c.
func NewFacade(c Catalog, name string, opts ...Option) *Dispatcher {
	return New(c.EntryPoints(name), append([]Option{WithFacadeName(name)}, opts...)...)
}

// WithFacadeName sets the facade identity used in errors, logs and
// invocations.
func WithFacadeName(name string) Option {
	return func(d *Dispatcher) {
		d.facade = name
	}
}

// WithServices sets the resolver used by service parameters and the fallback
// binding strategy.
func WithServices(r Resolver) Option {
	return func(d *Dispatcher) {
		d.services = r
	}
}

// WithBinding replaces the default binding chain.
func WithBinding(b *Binding) Option {
	return func(d *Dispatcher) {
		d.binding = b
	}
}

// WithInterceptor registers i under every interceptor role it implements.
// Interceptors run in registration order, the first outermost. It panics if
// i implements no role.
func WithInterceptor(i any) Option {
	return func(d *Dispatcher) {
		d.interceptors.add(i)
	}
}

// WithAggregation sets the strategy for calls matching several handlers.
func WithAggregation(s AggregationStrategy) Option {
	return func(d *Dispatcher) {
		d.aggregation = s
	}
}

// WithLogger sets the logger. The dispatcher logs under the "facade" name.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l.Named("facade")
	}
}

// withServices returns a shallow copy bound to r. Entries, interceptors and
// hooks are shared read-only.
func (d *Dispatcher) withServices(r Resolver) *Dispatcher {
	c := *d
	c.services = r
	return &c
}

// call tracks one dispatch from routing to completion.
type call struct {
	d     *Dispatcher
	ctx   context.Context
	inv   *Invocation
	start time.Time
	want  reflect.Type
}

func (d *Dispatcher) begin(ctx context.Context, op Operation, args Arguments) *call {
	return &call{
		d:     d,
		ctx:   ctx,
		inv:   newInvocation(d.facade, op, args),
		start: time.Now(),
	}
}

// resolve is the first cancellation checkpoint. It routes the arguments and
// selects every match (multi-recipient) or the first one.
func (c *call) resolve(all bool) error {
	if err := checkCanceled(c.ctx); err != nil {
		return c.finish(err)
	}

	matched := c.d.router.Select(c.d.entries, c.inv.Args)
	if len(matched) == 0 {
		c.d.hooks.callOnNoMatch(c.ctx, c.d.facade, c.inv.Operation, c.inv.Args)
		c.d.logger.Debug("no matching entry point",
			zap.String("facade", c.d.facade),
			zap.String("operation", string(c.inv.Operation)),
			zap.Strings("arguments", lo.Keys(c.inv.Args)),
		)
		return c.finish(fmt.Errorf("%w: facade %q, operation %s", ErrNoMatchingEntryPoint, c.d.facade, c.inv.Operation))
	}

	if !all {
		matched = matched[:1]
	}
	c.inv.resolved(c.d.handlers(matched, c.inv.Args))
	return nil
}

// handlers builds the per-call handler values. Binding happens inside
// invoke, so binder errors surface at first use.
func (d *Dispatcher) handlers(eps []*EntryPoint, args Arguments) []Handler {
	return lo.Map(eps, func(ep *EntryPoint, _ int) Handler {
		return Handler{
			Owner:      ep.owner,
			Marker:     ep.marker,
			Static:     ep.static,
			EntryPoint: ep,
			invoke: func(ctx context.Context) (any, error) {
				in, err := d.binding.bind(ctx, ep, args, d.services)
				if err != nil {
					return nil, err
				}
				return ep.invoke(ctx, in)
			},
		}
	})
}

// reject fails the call when any candidate has a shape outside allowed.
func (c *call) reject(allowed ...ReturnShape) error {
	bad, found := lo.Find(c.inv.Handlers, func(h Handler) bool {
		return !slices.Contains(allowed, h.Shape())
	})
	if !found {
		return nil
	}
	return c.finish(shapeMismatch(string(c.inv.Operation), bad.EntryPoint))
}

// expect fails the call when a candidate's declared result type can never
// be returned as want, and records want for the values produced later.
func (c *call) expect(want reflect.Type) error {
	c.want = want
	bad, found := lo.Find(c.inv.Handlers, func(h Handler) bool {
		return !declares(h.EntryPoint.ResultType(), want)
	})
	if !found {
		return nil
	}
	return c.finish(&ShapeMismatchError{
		Op:         string(c.inv.Operation),
		EntryPoint: bad.EntryPoint.Signature(),
		Shape:      bad.Shape(),
		Want:       want,
		Got:        bad.EntryPoint.ResultType(),
	})
}

// conform checks a value produced by h against the requested result type.
func (c *call) conform(h Handler, v any) error {
	if converts(v, c.want) {
		return nil
	}
	return typeMismatch(string(c.inv.Operation), h.EntryPoint.Signature(), c.want, v)
}

func (c *call) running() {
	c.d.logger.Debug("dispatching",
		zap.String("invocation_id", c.inv.ID),
		zap.String("facade", c.d.facade),
		zap.String("operation", string(c.inv.Operation)),
		zap.String("method", c.inv.Method),
		zap.Int("handlers", len(c.inv.Handlers)),
	)
	c.d.hooks.callOnDispatch(c.ctx, c.inv)
	c.inv.transition(StateInterceptorsRunning)
}

// invoke is the per-handler cancellation checkpoint.
func (c *call) invoke(ctx context.Context, h Handler) (any, error) {
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}
	c.inv.transition(StateHandlerInvoked)
	return h.Invoke(ctx)
}

func (c *call) invoked() {
	c.inv.transition(StateHandlerInvoked)
}

// pick applies the aggregation strategy to the list reaching the terminal.
func (c *call) pick(handlers []Handler) []Handler {
	if c.d.aggregation != AggregateFirst || len(handlers) <= 1 {
		return handlers
	}
	c.d.logger.Warn("first aggregation strategy skipped handlers",
		zap.String("invocation_id", c.inv.ID),
		zap.String("facade", c.d.facade),
		zap.String("method", c.inv.Method),
		zap.Int("skipped", len(handlers)-1),
	)
	return handlers[:1]
}

func (c *call) finish(err error) error {
	c.inv.complete(err)
	c.d.hooks.callOnComplete(c.ctx, c.inv, err, time.Since(c.start))
	return err
}

// single returns the one handler a single-recipient terminal runs.
func single(handlers []Handler) (Handler, error) {
	if len(handlers) == 0 {
		return Handler{}, ErrNoMatchingEntryPoint
	}
	return handlers[0], nil
}

// Publish implements Facade.
func (d *Dispatcher) Publish(ctx context.Context, args Arguments) error {
	c := d.begin(ctx, OpPublish, args)
	if err := c.resolve(true); err != nil {
		return err
	}
	if err := c.reject(ShapeVoid, ShapeResult); err != nil {
		return err
	}

	c.running()
	run := chain(c.inv.Handlers, actionLinks(c.inv, d.interceptors.action), func(ctx context.Context, hs []Handler) (none, error) {
		for _, h := range c.pick(hs) {
			if _, err := c.invoke(ctx, h); err != nil {
				return none{}, err
			}
		}
		return none{}, nil
	})

	_, err := run(ctx)
	return c.finish(err)
}

// PublishAsync implements Facade.
//
// Every non-stream match is invoked in registration order, but only the
// first asynchronous value produced is awaited. Handlers beyond the awaited
// one are not waited for and may still be running when PublishAsync
// returns.
func (d *Dispatcher) PublishAsync(ctx context.Context, args Arguments) error {
	c := d.begin(ctx, OpPublishAsync, args)
	if err := c.resolve(true); err != nil {
		return err
	}

	runnable := lo.Filter(c.inv.Handlers, func(h Handler, _ int) bool {
		return h.Shape() != ShapeStream
	})
	if len(runnable) == 0 {
		return c.finish(shapeMismatch(string(OpPublishAsync), c.inv.Handlers[0].EntryPoint))
	}
	if skipped := len(c.inv.Handlers) - len(runnable); skipped > 0 {
		d.logger.Debug("publish skipped stream handlers",
			zap.String("invocation_id", c.inv.ID),
			zap.Int("skipped", skipped),
		)
		c.inv.resolved(runnable)
	}

	c.running()
	run := chain(c.inv.Handlers, asyncActionLinks(c.inv, d.interceptors.asyncAction), func(ctx context.Context, hs []Handler) (none, error) {
		var pending Awaitable
		for _, h := range c.pick(hs) {
			v, err := c.invoke(ctx, h)
			if err != nil {
				return none{}, err
			}
			if a, ok := v.(Awaitable); ok && !isNil(a) && pending == nil {
				pending = a
			}
		}
		if pending == nil {
			return none{}, nil
		}
		_, err := pending.Await(ctx)
		return none{}, err
	})

	_, err := run(ctx)
	return c.finish(err)
}

// Invoke implements Facade.
func (d *Dispatcher) Invoke(ctx context.Context, args Arguments) (any, error) {
	return d.invoke(ctx, args, nil)
}

// InvokeAsync implements Facade. Synchronous result handlers are accepted
// and their value passes through unchanged.
func (d *Dispatcher) InvokeAsync(ctx context.Context, args Arguments) (any, error) {
	return d.invokeAsync(ctx, args, nil)
}

func (d *Dispatcher) invokeAs(ctx context.Context, op Operation, args Arguments, want reflect.Type) (any, error) {
	if op == OpSendAsync {
		return d.invokeAsync(ctx, args, want)
	}
	return d.invoke(ctx, args, want)
}

func (d *Dispatcher) invoke(ctx context.Context, args Arguments, want reflect.Type) (any, error) {
	c := d.begin(ctx, OpSend, args)
	if err := c.resolve(false); err != nil {
		return nil, err
	}
	if err := c.reject(ShapeResult); err != nil {
		return nil, err
	}
	if err := c.expect(want); err != nil {
		return nil, err
	}

	c.running()
	run := chain(c.inv.Handlers, resultLinks(c.inv, d.interceptors.result), func(ctx context.Context, hs []Handler) (any, error) {
		h, err := single(hs)
		if err != nil {
			return nil, err
		}
		v, err := c.invoke(ctx, h)
		if err != nil {
			return nil, err
		}
		if err := c.conform(h, v); err != nil {
			return nil, err
		}
		return v, nil
	})

	v, err := run(ctx)
	if err != nil {
		return nil, c.finish(err)
	}
	return v, c.finish(nil)
}

func (d *Dispatcher) invokeAsync(ctx context.Context, args Arguments, want reflect.Type) (any, error) {
	c := d.begin(ctx, OpSendAsync, args)
	if err := c.resolve(false); err != nil {
		return nil, err
	}
	if err := c.reject(ShapeResult, ShapeAsyncResult); err != nil {
		return nil, err
	}
	if err := c.expect(want); err != nil {
		return nil, err
	}

	c.running()
	run := chain(c.inv.Handlers, asyncResultLinks(c.inv, d.interceptors.asyncResult), func(ctx context.Context, hs []Handler) (any, error) {
		h, err := single(hs)
		if err != nil {
			return nil, err
		}
		v, err := c.invoke(ctx, h)
		if err != nil {
			return nil, err
		}
		if v, err = await(ctx, v); err != nil {
			return nil, err
		}
		if err := c.conform(h, v); err != nil {
			return nil, err
		}
		return v, nil
	})

	v, err := run(ctx)
	if err != nil {
		return nil, c.finish(err)
	}
	return v, c.finish(nil)
}

// Stream implements Facade. The invocation completes when the returned
// sequence is exhausted, the consumer stops, or Sequence.Abandon is called.
func (d *Dispatcher) Stream(ctx context.Context, args Arguments) (Sequence, error) {
	c := d.begin(ctx, OpCreateStream, args)
	if err := c.resolve(false); err != nil {
		return Sequence{}, err
	}
	if err := c.reject(ShapeStream); err != nil {
		return Sequence{}, err
	}

	c.running()
	run := chain(c.inv.Handlers, streamLinks(c.inv, d.interceptors.stream), func(ctx context.Context, hs []Handler) (Sequence, error) {
		h, err := single(hs)
		if err != nil {
			return Sequence{}, err
		}
		v, err := c.invoke(ctx, h)
		if err != nil {
			return Sequence{}, err
		}
		items, _ := v.(iter.Seq2[any, error])
		if items == nil {
			items = func(func(any, error) bool) {}
		}
		return Sequence{ElemType: h.EntryPoint.ResultType(), Items: items}, nil
	})

	seq, err := run(ctx)
	if err != nil {
		return Sequence{}, c.finish(err)
	}

	prev := seq.abandon
	items, finish := onDone(once(guardCanceled(ctx, seq.Items)), func(err error) {
		_ = c.finish(err)
	})
	seq.Items = items
	seq.abandon = func(err error) {
		if prev != nil {
			prev(err)
		}
		finish(err)
	}
	return seq, nil
}

// Aggregate implements Facade. Handlers run as the sequence is consumed, so
// a handler failure or cancellation appears as an element error.
func (d *Dispatcher) Aggregate(ctx context.Context, args Arguments) (iter.Seq2[any, error], error) {
	return d.aggregateAs(ctx, OpAggregate, args, nil)
}

// AggregateAsync implements Facade.
func (d *Dispatcher) AggregateAsync(ctx context.Context, args Arguments) (iter.Seq2[any, error], error) {
	return d.aggregateAs(ctx, OpAggregateAsync, args, nil)
}

func (d *Dispatcher) aggregateAs(ctx context.Context, op Operation, args Arguments, want reflect.Type) (iter.Seq2[any, error], error) {
	if op == OpAggregateAsync {
		return d.aggregate(ctx, op, args, want, true, ShapeResult, ShapeAsyncResult)
	}
	return d.aggregate(ctx, OpAggregate, args, want, false, ShapeResult)
}

func (d *Dispatcher) aggregate(ctx context.Context, op Operation, args Arguments, want reflect.Type, async bool, allowed ...ReturnShape) (iter.Seq2[any, error], error) {
	c := d.begin(ctx, op, args)
	if err := c.resolve(true); err != nil {
		return nil, err
	}
	if err := c.reject(allowed...); err != nil {
		return nil, err
	}
	if err := c.expect(want); err != nil {
		return nil, err
	}

	terminal := func(ctx context.Context, hs []Handler) (any, error) {
		return collect(ctx, c.pick(hs), async, c.invoked, c.conform), nil
	}

	c.running()
	var run func(context.Context) (any, error)
	if async {
		run = chain(c.inv.Handlers, asyncResultLinks(c.inv, d.interceptors.asyncResult), terminal)
	} else {
		run = chain(c.inv.Handlers, resultLinks(c.inv, d.interceptors.result), terminal)
	}

	v, err := run(ctx)
	if err != nil {
		return nil, c.finish(err)
	}

	seq, ok := v.(iter.Seq2[any, error])
	if !ok {
		return nil, c.finish(typeMismatch(string(op), c.inv.Method, reflect.TypeFor[iter.Seq2[any, error]](), v))
	}

	return OnDone(seq, func(err error) {
		_ = c.finish(err)
	}), nil
}

// Route implements Facade. It never awaits or consumes the value.
func (d *Dispatcher) Route(ctx context.Context, args Arguments) (Routed, error) {
	c := d.begin(ctx, OpRoute, args)
	if err := c.resolve(false); err != nil {
		return Routed{}, err
	}

	h := c.inv.Handlers[0]
	c.running()
	run := chain(c.inv.Handlers, resultLinks(c.inv, d.interceptors.result), func(ctx context.Context, hs []Handler) (any, error) {
		h, err := single(hs)
		if err != nil {
			return nil, err
		}
		return c.invoke(ctx, h)
	})

	v, err := run(ctx)
	if err != nil {
		return Routed{}, c.finish(err)
	}
	return Routed{Shape: h.Shape(), Type: h.EntryPoint.ResultType(), Value: v}, c.finish(nil)
}

// guardCanceled checks ctx before handing out every element of seq.
func guardCanceled(ctx context.Context, seq iter.Seq2[any, error]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		if err := checkCanceled(ctx); err != nil {
			yield(nil, err)
			return
		}
		for v, err := range seq {
			if cerr := checkCanceled(ctx); cerr != nil {
				yield(nil, cerr)
				return
			}
			if !yield(v, err) {
				return
			}
		}
	}
}
