// Package facade provides an in-process dispatch and interception runtime.
//
// A facade is a named set of entry points. Callers hand the dispatcher a bag
// of named arguments; the dispatcher finds the entry points whose parameters
// fit, binds each parameter from the arguments, a service resolver or the
// context, runs the call through an interceptor chain and invokes the
// handlers. Handlers return one of five shapes: nothing, a value, an
// asynchronous nothing, an asynchronous value, or a stream.
//
// # Quick Start
//
// Describe entry points with the shape-specific constructors:
//
//	greet := facade.NewFunc("Greet",
//	    func(ctx context.Context, in facade.Values) (string, error) {
//	        return "Hello, " + facade.Value[string](in, "name"), nil
//	    },
//	    facade.WithOwner("Greeter"),
//	    facade.WithParams(facade.Param[string]("name")),
//	)
//
// Create a dispatcher and call it:
//
//	d := facade.New([]*facade.EntryPoint{greet})
//
//	msg, err := facade.Send[string](ctx, d, facade.Arguments{"name": "Alice"})
//	// msg == "Hello, Alice"
//
// # Dispatch Operations
//
// Each operation accepts only certain return shapes and fails with
// ErrReturnShapeMismatch before running anything otherwise:
//
//   - Publish: every match, void or result. Results are discarded.
//   - PublishAsync: every match except streams. The first asynchronous value is awaited.
//   - Send / Invoke: the first match, result only.
//   - SendAsync / InvokeAsync: the first match, result or async result.
//   - CreateStream / Stream: the first match, stream only.
//   - Query / Aggregate: every match, result only, as a lazy sequence.
//   - QueryAsync / AggregateAsync: every match, result or async result, awaited per element.
//   - Route: the first match of any shape, returned raw with its shape.
//
// When no entry point matches, every operation fails with
// ErrNoMatchingEntryPoint. A handler that ran and returned nothing is not a
// miss.
//
// # Matching
//
// The Router is a pure predicate. An entry point matches when every
// argument-sourced parameter without a custom binder is present with an
// assignable value, or is optional. Service and context parameters never
// affect matching. A Guard adds conditions on the argument values:
//
//	facade.WithGuard(facade.And(
//	    facade.HasArgs("tenant"),
//	    facade.ArgEquals("region", "eu"),
//	))
//
// Matches are tried in registration order. Use a Registry to group entry
// points by facade name and NewFacade to build a dispatcher over one group.
//
// # Binding
//
// Parameters are resolved by a chain of binding strategies, by default
// ServiceBinding, ArgumentBinding and ContextBinding, with a service lookup as
// fallback. The chain is extensible:
//
//	b := facade.NewBinding()
//	err := facade.AddStrategyBefore[facade.ArgumentBinding](b, myStrategy)
//
// A parameter carrying a binder marker bypasses the chain and goes straight
// to the binder registered for it:
//
//	b.RegisterBinder(facade.ConvertMarker, facade.ConvertBinder{})
//	facade.Param[int]("count").WithBinder(facade.ConvertMarker)
//
// An unregistered marker fails the call with ErrBinderNotRegistered.
//
// # Interceptors
//
// Interceptors wrap dispatch as nested delegates. There is one role per
// call shape (ActionInterceptor, ResultInterceptor, AsyncActionInterceptor,
// AsyncResultInterceptor, StreamInterceptor) and the composite Interceptor.
// An interceptor is registered under every role it implements; embed
// Passthrough to implement only some of them.
//
//	type audit struct{ facade.Passthrough }
//
//	func (audit) InterceptResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
//	    v, err := next(ctx)
//	    record(inv.Method, err)
//	    return v, err
//	}
//
// Calling next with no handlers continues with the current list. Calling it
// with handlers replaces the list for the rest of the chain. Not calling it
// short-circuits the call. Standard interceptors live in the interceptor
// subpackage.
//
// # Aggregation
//
// Publish and the Query operations run every match. AggregateCollection,
// the default, runs all of them in registration order. AggregateFirst runs
// only the first and logs a warning about the rest. Aggregated query results
// are lazy: each handler runs when the consumer asks for its element, and
// the sequence can be ranged only once.
//
// # Invocation Lifecycle
//
// Each call gets an Invocation that moves forward through NotStarted,
// HandlersResolved, InterceptorsRunning, HandlerInvoked and Completed.
// Completed is terminal, with an Outcome of Succeeded, Failed or Canceled.
// For streams and aggregated queries completion happens when the sequence
// ends.
//
// # Hooks
//
// Hooks observe the lifecycle without taking part in it:
//
//	facade.New(entries,
//	    facade.WithOnDispatch(func(ctx context.Context, inv *facade.Invocation) { ... }),
//	    facade.WithOnSuccess(func(ctx context.Context, inv *facade.Invocation, d time.Duration) { ... }),
//	    facade.WithOnFailure(func(ctx context.Context, inv *facade.Invocation, err error, d time.Duration) { ... }),
//	    facade.WithOnNoMatch(func(ctx context.Context, name string, op facade.Operation, args facade.Arguments) { ... }),
//	)
//
// # Scopes
//
// ScopedDispatcher opens a dependency scope per call and resolves services
// from it. Synchronous calls use a Scope closed on return; asynchronous
// calls use an AsyncScope shut down after the awaited work. Streams and
// aggregated queries hold their scope until the sequence ends.
//
// # Cancellation
//
// The context is checked before handlers are resolved, before each handler
// runs and before each stream element is handed out. A canceled call fails
// with an error matching both ErrCanceled and the context cause. Nothing is
// retried by the dispatcher.
//
// # Thread Safety
//
// Dispatcher, ScopedDispatcher and Registry are safe for concurrent use
// after construction. An Invocation belongs to a single call.
package facade
