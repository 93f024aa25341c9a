package facade

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"strings"
)

// Marker identifies a group of handlers or a custom parameter binder. It
// replaces annotation types: handlers and parameters carry the marker, and
// binders are looked up by it in a registry.
type Marker string

// Arguments is the caller-supplied argument bag, keyed by parameter name.
type Arguments map[string]any

// Values holds the resolved parameter values passed to a handler, keyed by
// parameter name.
type Values map[string]any

// Value returns the resolved value for name as T. It returns the zero value
// when the parameter is absent or holds a value of another type.
//
//	name := facade.Value[string](in, "name")
func Value[T any](in Values, name string) T {
	v, _ := in[name].(T)
	return v
}

// Invoker is the pre-bound invocation closure stored on an EntryPoint. It is
// captured once at construction and never re-resolved per call.
type Invoker func(ctx context.Context, in Values) (any, error)

// EntryPoint is the immutable descriptor of one handler: its identity, its
// formal parameters, its return shape and the closure that invokes it.
//
// Create entry points with the shape-specific constructors:
//
//	greet := facade.NewFunc("Greet", func(ctx context.Context, in facade.Values) (string, error) {
//	    return "Hello, " + facade.Value[string](in, "name"), nil
//	}, facade.WithParams(facade.Param[string]("name")))
type EntryPoint struct {
	name       string
	owner      string
	static     bool
	marker     Marker
	shape      ReturnShape
	resultType reflect.Type
	params     []Parameter
	guard      Guard
	invoke     Invoker
}

// EntryPointOption configures an EntryPoint during construction.
type EntryPointOption func(*EntryPoint)

// WithParams declares the handler's formal parameters in order.
func WithParams(params ...Parameter) EntryPointOption {
	return func(ep *EntryPoint) {
		ep.params = append(ep.params, params...)
	}
}

// WithOwner records the type that owns the handler method.
func WithOwner(owner string) EntryPointOption {
	return func(ep *EntryPoint) {
		ep.owner = owner
	}
}

// WithStatic marks the handler as not bound to an owner instance.
func WithStatic() EntryPointOption {
	return func(ep *EntryPoint) {
		ep.static = true
	}
}

// WithMarker tags the handler with the marker of its handler group.
func WithMarker(m Marker) EntryPointOption {
	return func(ep *EntryPoint) {
		ep.marker = m
	}
}

// WithGuard adds a predicate over the argument bag that must hold, in
// addition to structural compatibility, for the handler to match.
func WithGuard(g Guard) EntryPointOption {
	return func(ep *EntryPoint) {
		ep.guard = g
	}
}

func newEntryPoint(name string, shape ReturnShape, resultType reflect.Type, invoke Invoker, opts []EntryPointOption) *EntryPoint {
	ep := &EntryPoint{
		name:       name,
		shape:      shape,
		resultType: resultType,
		invoke:     invoke,
	}
	for _, opt := range opts {
		opt(ep)
	}
	return ep
}

// NewAction creates a ShapeVoid entry point.
func NewAction(name string, fn func(ctx context.Context, in Values) error, opts ...EntryPointOption) *EntryPoint {
	return newEntryPoint(name, ShapeVoid, nil, func(ctx context.Context, in Values) (any, error) {
		return nil, fn(ctx, in)
	}, opts)
}

// NewFunc creates a ShapeResult entry point producing R.
func NewFunc[R any](name string, fn func(ctx context.Context, in Values) (R, error), opts ...EntryPointOption) *EntryPoint {
	return newEntryPoint(name, ShapeResult, reflect.TypeFor[R](), func(ctx context.Context, in Values) (any, error) {
		v, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return v, nil
	}, opts)
}

// NewAsyncAction creates a ShapeAsyncVoid entry point. The returned
// Awaitable's value is ignored.
func NewAsyncAction(name string, fn func(ctx context.Context, in Values) Awaitable, opts ...EntryPointOption) *EntryPoint {
	return newEntryPoint(name, ShapeAsyncVoid, nil, func(ctx context.Context, in Values) (any, error) {
		return fn(ctx, in), nil
	}, opts)
}

// NewAsyncFunc creates a ShapeAsyncResult entry point whose Future produces R.
func NewAsyncFunc[R any](name string, fn func(ctx context.Context, in Values) *Future[R], opts ...EntryPointOption) *EntryPoint {
	return newEntryPoint(name, ShapeAsyncResult, reflect.TypeFor[R](), func(ctx context.Context, in Values) (any, error) {
		f := fn(ctx, in)
		if f == nil {
			return nil, nil
		}
		return f, nil
	}, opts)
}

// NewStream creates a ShapeStream entry point producing a sequence of T.
func NewStream[T any](name string, fn func(ctx context.Context, in Values) iter.Seq2[T, error], opts ...EntryPointOption) *EntryPoint {
	return newEntryPoint(name, ShapeStream, reflect.TypeFor[T](), func(ctx context.Context, in Values) (any, error) {
		seq := fn(ctx, in)
		if seq == nil {
			return nil, nil
		}
		var items iter.Seq2[any, error] = func(yield func(any, error) bool) {
			for v, err := range seq {
				if !yield(v, err) {
					return
				}
			}
		}
		return items, nil
	}, opts)
}

// Name returns the handler's method name.
func (ep *EntryPoint) Name() string { return ep.name }

// Owner returns the type that owns the handler, or "" if unset.
func (ep *EntryPoint) Owner() string { return ep.owner }

// Static reports whether the handler is not bound to an owner instance.
func (ep *EntryPoint) Static() bool { return ep.static }

// Marker returns the handler group marker.
func (ep *EntryPoint) Marker() Marker { return ep.marker }

// Shape returns the handler's return shape.
func (ep *EntryPoint) Shape() ReturnShape { return ep.shape }

// ResultType returns the declared result type. For ShapeStream it is the
// element type; for void shapes it is nil.
func (ep *EntryPoint) ResultType() reflect.Type { return ep.resultType }

// Params returns a copy of the formal parameters.
func (ep *EntryPoint) Params() []Parameter {
	out := make([]Parameter, len(ep.params))
	copy(out, ep.params)
	return out
}

// Invoke calls the bound closure with already resolved values.
func (ep *EntryPoint) Invoke(ctx context.Context, in Values) (any, error) {
	return ep.invoke(ctx, in)
}

// Signature renders the identity token of the handler, for example
// "Greeter.Greet(name string) result[string]".
func (ep *EntryPoint) Signature() string {
	var b strings.Builder
	if ep.owner != "" {
		b.WriteString(ep.owner)
		b.WriteByte('.')
	}
	b.WriteString(ep.name)
	b.WriteByte('(')
	for i, p := range ep.params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %v", p.Name, p.Type)
	}
	b.WriteString(") ")
	b.WriteString(ep.shape.String())
	if ep.resultType != nil {
		fmt.Fprintf(&b, "[%v]", ep.resultType)
	}
	return b.String()
}

// ParamSource says where a parameter's value comes from.
type ParamSource int

const (
	// FromArguments parameters are read from the caller's argument bag and
	// are checked by the router.
	FromArguments ParamSource = iota

	// FromServices parameters are resolved from the dependency resolver.
	FromServices

	// FromContext parameters receive the call's context.Context.
	FromContext
)

// Parameter describes one formal parameter of a handler.
type Parameter struct {
	Name     string
	Type     reflect.Type
	Optional bool
	Default  any
	Source   ParamSource

	// Binder, when set, routes resolution to the binder registered for this
	// marker, bypassing the strategy chain and the router's checks.
	Binder Marker
}

// Param declares a required parameter of type T read from the argument bag.
func Param[T any](name string) Parameter {
	return Parameter{Name: name, Type: reflect.TypeFor[T]()}
}

// OptionalParam declares a parameter of type T that falls back to def when
// absent from the argument bag.
func OptionalParam[T any](name string, def T) Parameter {
	return Parameter{Name: name, Type: reflect.TypeFor[T](), Optional: true, Default: def}
}

// ServiceParam declares a parameter of type T resolved from the dependency
// resolver.
func ServiceParam[T any](name string) Parameter {
	return Parameter{Name: name, Type: reflect.TypeFor[T](), Source: FromServices}
}

// ContextParam declares a parameter that receives the call's context.
func ContextParam(name string) Parameter {
	return Parameter{Name: name, Type: contextType, Source: FromContext}
}

// WithBinder returns a copy of p resolved by the binder registered for m.
func (p Parameter) WithBinder(m Marker) Parameter {
	p.Binder = m
	return p
}

var contextType = reflect.TypeFor[context.Context]()
