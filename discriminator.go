package facade

import (
	"encoding/json"
	"reflect"
	"slices"

	"github.com/samber/lo"
)

// Guard is an extra predicate over the argument bag evaluated by the router
// after structural matching. Guards are cheap and must not have side
// effects.
type Guard interface {
	Match(args Arguments) bool
}

// GuardFunc adapts a function to the Guard interface.
type GuardFunc func(args Arguments) bool

// Match implements Guard.
func (f GuardFunc) Match(args Arguments) bool { return f(args) }

// HasArgs matches when every name is present in the bag. A nil value counts
// as present.
func HasArgs(names ...string) Guard {
	return GuardFunc(func(args Arguments) bool {
		return lo.EveryBy(names, func(n string) bool {
			_, ok := args[n]
			return ok
		})
	})
}

// ArgMatches matches when the named argument is present and pred accepts it.
func ArgMatches(name string, pred func(v any) bool) Guard {
	return GuardFunc(func(args Arguments) bool {
		v, ok := args[name]
		return ok && pred(v)
	})
}

// ArgEquals matches when the named argument is deeply equal to value. Types
// must agree: int 42 does not equal int64 42.
func ArgEquals(name string, value any) Guard {
	return ArgIn(name, value)
}

// ArgIn matches when the named argument deeply equals one of values.
func ArgIn(name string, values ...any) Guard {
	return ArgMatches(name, func(v any) bool {
		return slices.ContainsFunc(values, func(want any) bool {
			return reflect.DeepEqual(v, want)
		})
	})
}

// ArgPathEquals matches when the named argument holds a JSON document
// ([]byte, json.RawMessage or string) whose value at the gjson path equals
// want. JSON numbers compare as float64.
func ArgPathEquals(name, path string, want any) Guard {
	return ArgMatches(name, func(v any) bool {
		var raw []byte
		switch doc := v.(type) {
		case []byte:
			raw = doc
		case json.RawMessage:
			raw = doc
		case string:
			raw = []byte(doc)
		default:
			return false
		}
		got, ok := ArgumentPath(raw, path)
		return ok && reflect.DeepEqual(got, want)
	})
}

// Not inverts g.
func Not(g Guard) Guard {
	return GuardFunc(func(args Arguments) bool { return !g.Match(args) })
}

// And matches when every guard matches, and always with no guards.
func And(gs ...Guard) Guard {
	return GuardFunc(func(args Arguments) bool {
		return lo.EveryBy(gs, func(g Guard) bool { return g.Match(args) })
	})
}

// Or matches when any guard matches, and never with no guards.
func Or(gs ...Guard) Guard {
	return GuardFunc(func(args Arguments) bool {
		return lo.SomeBy(gs, func(g Guard) bool { return g.Match(args) })
	})
}
