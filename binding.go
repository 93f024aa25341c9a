package facade

import (
	"context"
	"fmt"
	"reflect"
	"slices"
)

// BindingContext describes one parameter to resolve. It is built fresh for
// every parameter resolution and is read-only.
type BindingContext struct {
	Name       string
	Type       reflect.Type
	Args       Arguments
	HasDefault bool
	Default    any
	Marker     Marker
	Source     ParamSource

	// Services resolves dependencies for the current call. Inside a scoped
	// dispatch it is the call's scope.
	Services Resolver
}

func newBindingContext(p Parameter, args Arguments, services Resolver) BindingContext {
	return BindingContext{
		Name:       p.Name,
		Type:       p.Type,
		Args:       args,
		HasDefault: p.Optional,
		Default:    p.Default,
		Marker:     p.Binder,
		Source:     p.Source,
		Services:   services,
	}
}

// BindingStrategy is one resolver in the ordered chain. The first strategy
// whose CanBind returns true produces the value.
type BindingStrategy interface {
	CanBind(bc BindingContext) bool
	Bind(ctx context.Context, bc BindingContext) (any, error)
}

// Binder resolves parameters declared with a custom marker. Binders bypass
// the strategy chain entirely.
type Binder interface {
	Bind(ctx context.Context, bc BindingContext) (any, error)
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc func(ctx context.Context, bc BindingContext) (any, error)

// Bind implements Binder.
func (f BinderFunc) Bind(ctx context.Context, bc BindingContext) (any, error) { return f(ctx, bc) }

// ServiceBinding resolves FromServices parameters through the resolver.
type ServiceBinding struct{}

// CanBind implements BindingStrategy.
func (ServiceBinding) CanBind(bc BindingContext) bool {
	return bc.Source == FromServices && bc.Services != nil
}

// Bind implements BindingStrategy.
func (ServiceBinding) Bind(_ context.Context, bc BindingContext) (any, error) {
	return resolveService(bc)
}

// ArgumentBinding resolves FromArguments parameters by name from the
// argument bag, falling back to the declared default.
type ArgumentBinding struct{}

// CanBind implements BindingStrategy.
func (ArgumentBinding) CanBind(bc BindingContext) bool {
	if bc.Source != FromArguments {
		return false
	}
	_, ok := bc.Args[bc.Name]
	return ok || bc.HasDefault
}

// Bind implements BindingStrategy.
func (ArgumentBinding) Bind(_ context.Context, bc BindingContext) (any, error) {
	if v, ok := bc.Args[bc.Name]; ok {
		return v, nil
	}
	return bc.Default, nil
}

// ContextBinding passes the call's context to FromContext parameters and to
// any parameter declared as context.Context.
type ContextBinding struct{}

// CanBind implements BindingStrategy.
func (ContextBinding) CanBind(bc BindingContext) bool {
	return bc.Source == FromContext || bc.Type == contextType
}

// Bind implements BindingStrategy.
func (ContextBinding) Bind(ctx context.Context, _ BindingContext) (any, error) {
	return ctx, nil
}

// fallbackBinding is tried when no strategy in the chain applies: it asks the
// resolver for the parameter's type.
type fallbackBinding struct{}

func (fallbackBinding) CanBind(BindingContext) bool { return true }

func (fallbackBinding) Bind(_ context.Context, bc BindingContext) (any, error) {
	return resolveService(bc)
}

func resolveService(bc BindingContext) (any, error) {
	if bc.Services == nil {
		return nil, fmt.Errorf("%w: %s %v: no resolver configured", ErrParameterNotResolved, bc.Name, bc.Type)
	}
	v, err := bc.Services.Resolve(bc.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %v: %w", ErrParameterNotResolved, bc.Name, bc.Type, err)
	}
	return v, nil
}

// Binding orchestrates the ordered strategy chain and the registry of custom
// binders.
//
// Binding is safe for concurrent use once configuration is complete. Do not
// add strategies or binders while dispatching.
type Binding struct {
	strategies []BindingStrategy
	fallback   BindingStrategy
	binders    map[Marker]Binder
}

// NewBinding creates a Binding with the default order: ServiceBinding,
// ArgumentBinding, ContextBinding.
func NewBinding() *Binding {
	return &Binding{
		strategies: []BindingStrategy{ServiceBinding{}, ArgumentBinding{}, ContextBinding{}},
		fallback:   fallbackBinding{},
		binders:    make(map[Marker]Binder),
	}
}

// Strategies returns a copy of the chain in evaluation order.
func (b *Binding) Strategies() []BindingStrategy {
	return slices.Clone(b.strategies)
}

// AddStrategy appends s to the end of the chain.
func (b *Binding) AddStrategy(s BindingStrategy) {
	b.strategies = append(b.strategies, s)
}

// InsertStrategy inserts s at index i. Indexes outside [0, len] fail.
func (b *Binding) InsertStrategy(i int, s BindingStrategy) error {
	if i < 0 || i > len(b.strategies) {
		return fmt.Errorf("insert binding strategy at %d: index out of range [0, %d]", i, len(b.strategies))
	}
	b.strategies = slices.Insert(b.strategies, i, s)
	return nil
}

// AddStrategyBefore inserts s immediately before the first strategy of type
// A. It fails with ErrStrategyAnchorNotFound when no such strategy exists.
//
// This is a package-level function (not a method) due to Go generics
// limitations: methods cannot have type parameters independent of the
// receiver.
//
//	err := facade.AddStrategyBefore[facade.ArgumentBinding](b, headerBinding{})
func AddStrategyBefore[A BindingStrategy](b *Binding, s BindingStrategy) error {
	i, err := b.anchor(reflect.TypeFor[A]())
	if err != nil {
		return err
	}
	b.strategies = slices.Insert(b.strategies, i, s)
	return nil
}

// AddStrategyAfter inserts s immediately after the first strategy of type A.
// It fails with ErrStrategyAnchorNotFound when no such strategy exists.
func AddStrategyAfter[A BindingStrategy](b *Binding, s BindingStrategy) error {
	i, err := b.anchor(reflect.TypeFor[A]())
	if err != nil {
		return err
	}
	b.strategies = slices.Insert(b.strategies, i+1, s)
	return nil
}

func (b *Binding) anchor(t reflect.Type) (int, error) {
	i := slices.IndexFunc(b.strategies, func(s BindingStrategy) bool {
		return reflect.TypeOf(s) == t
	})
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrStrategyAnchorNotFound, t)
	}
	return i, nil
}

// RegisterBinder registers the custom binder for parameters declared with
// marker m. Registering the same marker again replaces the binder.
func (b *Binding) RegisterBinder(m Marker, binder Binder) {
	b.binders[m] = binder
}

// Resolve produces the value for one parameter. A parameter with a binder
// marker is routed directly to that marker's binder; a missing binder is a
// configuration error. Otherwise strategies are tried in order and the
// fallback resolves from the dependency resolver.
func (b *Binding) Resolve(ctx context.Context, bc BindingContext) (any, error) {
	if bc.Marker != "" {
		binder, ok := b.binders[bc.Marker]
		if !ok {
			return nil, fmt.Errorf("%w: marker %q on parameter %s", ErrBinderNotRegistered, bc.Marker, bc.Name)
		}
		return binder.Bind(ctx, bc)
	}

	for _, s := range b.strategies {
		if s.CanBind(bc) {
			return s.Bind(ctx, bc)
		}
	}
	return b.fallback.Bind(ctx, bc)
}

// ResolveParameter resolves one parameter and asserts its value to T.
//
//	name, err := facade.ResolveParameter[string](ctx, b, bc)
func ResolveParameter[T any](ctx context.Context, b *Binding, bc BindingContext) (T, error) {
	var zero T
	v, err := b.Resolve(ctx, bc)
	if err != nil {
		return zero, err
	}
	if isNil(v) && nilable(reflect.TypeFor[T]()) {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s resolved to %T, want %s", ErrParameterNotResolved, bc.Name, v, reflect.TypeFor[T]())
	}
	return out, nil
}

// bind resolves every parameter of ep into Values.
func (b *Binding) bind(ctx context.Context, ep *EntryPoint, args Arguments, services Resolver) (Values, error) {
	in := make(Values, len(ep.params))
	for _, p := range ep.params {
		v, err := b.Resolve(ctx, newBindingContext(p, args, services))
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", ep.Signature(), err)
		}
		in[p.Name] = v
	}
	return in, nil
}
