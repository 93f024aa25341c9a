package facade

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"strings"
	"sync/atomic"
)

// AggregationStrategy decides what happens when more than one handler shares
// the call shape of an aggregated call.
type AggregationStrategy int

const (
	// AggregateCollection runs every matched handler in registration order
	// and collects all results. It is the default.
	AggregateCollection AggregationStrategy = iota

	// AggregateFirst runs only the first matched handler and ignores the
	// rest. The dispatcher logs a warning when handlers are skipped.
	AggregateFirst
)

func (s AggregationStrategy) String() string {
	switch s {
	case AggregateCollection:
		return "collection"
	case AggregateFirst:
		return "first"
	default:
		return "unknown"
	}
}

// ParseAggregationStrategy parses "collection" or "first".
func ParseAggregationStrategy(s string) (AggregationStrategy, error) {
	switch strings.ToLower(s) {
	case "", "collection":
		return AggregateCollection, nil
	case "first":
		return AggregateFirst, nil
	default:
		return 0, fmt.Errorf("unknown aggregation strategy %q", s)
	}
}

// Sequence is a stream of values together with the declared element type.
type Sequence struct {
	// ElemType is the declared element type, or nil when unknown.
	ElemType reflect.Type

	// Items yields elements until exhausted or until the consumer stops.
	Items iter.Seq2[any, error]

	abandon func(err error)
}

// Abandon ends a sequence that will never be consumed, completing its
// invocation with err and releasing anything held for it. It has no effect
// once the sequence was consumed.
func (s Sequence) Abandon(err error) {
	if s.abandon != nil {
		s.abandon(err)
	}
}

// Observe returns s with fn called exactly once when the sequence ends: on
// exhaustion, when the consumer stops, or on Abandon. fn receives the first
// error seen, or the error passed to Abandon.
func (s Sequence) Observe(fn func(err error)) Sequence {
	items, finish := onDone(s.Items, fn)
	prev := s.abandon
	s.Items = items
	s.abandon = func(err error) {
		finish(err)
		if prev != nil {
			prev(err)
		}
	}
	return s
}

// OnDone returns seq with fn called exactly once when it is exhausted or the
// consumer stops. fn receives the first error seen.
func OnDone(seq iter.Seq2[any, error], fn func(err error)) iter.Seq2[any, error] {
	items, _ := onDone(seq, fn)
	return items
}

// once makes seq single-use: ranging a second time yields
// ErrSequenceConsumed.
func once(seq iter.Seq2[any, error]) iter.Seq2[any, error] {
	var used atomic.Bool
	return func(yield func(any, error) bool) {
		if used.Swap(true) {
			yield(nil, ErrSequenceConsumed)
			return
		}
		seq(yield)
	}
}

// collect returns a lazy sequence running each handler when the consumer
// asks for the next value. Cancellation is checked before every handler; a
// failure, or a value rejected by check, ends the sequence.
func collect(ctx context.Context, handlers []Handler, awaitEach bool, onInvoke func(), check func(Handler, any) error) iter.Seq2[any, error] {
	return once(func(yield func(any, error) bool) {
		for _, h := range handlers {
			if err := checkCanceled(ctx); err != nil {
				yield(nil, err)
				return
			}

			onInvoke()
			v, err := h.Invoke(ctx)
			if err == nil && awaitEach {
				v, err = await(ctx, v)
			}
			if err == nil && check != nil {
				err = check(h, v)
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	})
}

// onDone wraps seq so fn runs exactly once with the first error seen, when
// the sequence is exhausted or the consumer stops early. The returned func
// runs fn without consuming the sequence.
func onDone(seq iter.Seq2[any, error], fn func(err error)) (iter.Seq2[any, error], func(err error)) {
	var done atomic.Bool
	finish := func(err error) {
		if !done.Swap(true) {
			fn(err)
		}
	}
	return func(yield func(any, error) bool) {
		var failure error
		defer func() {
			finish(failure)
		}()
		for v, err := range seq {
			if err != nil && failure == nil {
				failure = err
			}
			if !yield(v, err) {
				return
			}
		}
	}
}

// typed converts an untyped sequence into one of T. Elements not assignable
// to T end the sequence with a ReturnShapeMismatch error.
func typed[T any](op, entryPoint string, seq iter.Seq2[any, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v, err := range seq {
			var zero T
			if err != nil {
				if !yield(zero, err) {
					return
				}
				continue
			}
			out, err := convert[T](op, entryPoint, v)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}
