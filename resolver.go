package facade

import (
	"context"
	"fmt"
	"reflect"
)

// Resolver is the dependency-resolution capability the dispatcher relies on:
// resolve a service by type. Any container can be adapted to it.
type Resolver interface {
	Resolve(t reflect.Type) (any, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(t reflect.Type) (any, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(t reflect.Type) (any, error) { return f(t) }

// Services is a minimal Resolver backed by a map of pre-built values. It is
// meant for tests and small programs; production hosts adapt their
// container instead.
type Services map[reflect.Type]any

// Provide registers v as the service for type T.
//
//	s := facade.Services{}
//	facade.Provide[Clock](s, realClock{})
func Provide[T any](s Services, v T) {
	s[reflect.TypeFor[T]()] = v
}

// Resolve implements Resolver.
func (s Services) Resolve(t reflect.Type) (any, error) {
	v, ok := s[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, t)
	}
	return v, nil
}

// ResolveService is a generic helper that resolves T from r:
//
//	clock, err := facade.ResolveService[Clock](r)
func ResolveService[T any](r Resolver) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()

	v, err := r.Resolve(t)
	if err != nil {
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %T to %s", v, t)
	}
	return out, nil
}

// Scope is a resource lifetime for one synchronous call. Services resolved
// through it are bound to the call; Close releases them.
type Scope interface {
	Resolver
	Close() error
}

// AsyncScope is a resource lifetime for one asynchronous or streaming call.
// Shutdown may block on in-flight cleanup and honors ctx.
type AsyncScope interface {
	Resolver
	Shutdown(ctx context.Context) error
}

// ScopeFactory opens call-bound scopes. Every call gets its own scope; scopes
// are never shared between concurrent calls.
type ScopeFactory interface {
	NewScope(ctx context.Context) (Scope, error)
	NewAsyncScope(ctx context.Context) (AsyncScope, error)
}
