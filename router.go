package facade

import (
	"reflect"
)

// Router decides which entry points are structurally invocable with an
// argument bag. It holds no state and performs no side effects, so a single
// value is safe for concurrent use by any number of dispatches.
type Router struct{}

// Match reports whether ep can be invoked with args. Every parameter read
// from the argument bag and not covered by a custom binder must be present
// with a compatible value, or be optional. Compatibility is assignability to
// the declared type; nil is compatible only with nilable types. A guard on
// the entry point must also hold.
func (Router) Match(ep *EntryPoint, args Arguments) bool {
	for _, p := range ep.params {
		if p.Binder != "" || p.Source != FromArguments {
			continue
		}

		v, ok := args[p.Name]
		if !ok {
			if p.Optional {
				continue
			}
			return false
		}

		if !compatible(v, p.Type) {
			return false
		}
	}

	if ep.guard != nil && !ep.guard.Match(args) {
		return false
	}

	return true
}

// Select returns the entry points matching args, in registration order.
func (r Router) Select(eps []*EntryPoint, args Arguments) []*EntryPoint {
	var matched []*EntryPoint
	for _, ep := range eps {
		if r.Match(ep, args) {
			matched = append(matched, ep)
		}
	}
	return matched
}

// compatible reports whether v may be passed where t is declared. A nil t
// accepts anything.
func compatible(v any, t reflect.Type) bool {
	if t == nil {
		return true
	}
	if v == nil {
		return nilable(t)
	}
	return reflect.TypeOf(v).AssignableTo(t)
}

// nilable reports whether the zero value of t is nil.
func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

// isNil reports whether v is nil or an interface holding a nil pointer-like
// value.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	if nilable(rv.Type()) {
		return rv.IsNil()
	}
	return false
}

// convert asserts v to T. A nil v converts to the zero T when T is nilable.
func convert[T any](op, entryPoint string, v any) (T, error) {
	var zero T
	if out, ok := v.(T); ok {
		return out, nil
	}
	if isNil(v) && nilable(reflect.TypeFor[T]()) {
		return zero, nil
	}
	return zero, typeMismatch(op, entryPoint, reflect.TypeFor[T](), v)
}

// converts reports whether convert to want succeeds for v. A nil want
// accepts anything.
func converts(v any, want reflect.Type) bool {
	switch {
	case want == nil:
		return true
	case v == nil:
		return nilable(want)
	case want.Kind() == reflect.Interface && reflect.TypeOf(v).Implements(want):
		return true
	case reflect.TypeOf(v) == want:
		return true
	default:
		return isNil(v) && nilable(want)
	}
}

// declares reports whether a handler declaring result type rt can produce a
// want. Undeclared and interface result types are decided per value.
func declares(rt, want reflect.Type) bool {
	if rt == nil || want == nil || rt.Kind() == reflect.Interface {
		return true
	}
	if want.Kind() == reflect.Interface {
		return rt.Implements(want)
	}
	return rt == want
}
