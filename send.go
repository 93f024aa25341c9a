package facade

import (
	"context"
	"iter"
	"reflect"
)

// These are package-level functions rather than methods because Go does not
// allow type parameters on methods.

// Send invokes the first matching result handler through f and returns its
// value as T.
//
// Example:
//
//	greeting, err := facade.Send[string](ctx, d, facade.Arguments{"name": "Alice"})
func Send[T any](ctx context.Context, f Facade, args Arguments) (T, error) {
	v, err := invokeAs(ctx, f, OpSend, args, reflect.TypeFor[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return convert[T](string(OpSend), "", v)
}

// SendAsync invokes the first matching result or async-result handler through
// f and returns its awaited value as T.
func SendAsync[T any](ctx context.Context, f Facade, args Arguments) (T, error) {
	v, err := invokeAs(ctx, f, OpSendAsync, args, reflect.TypeFor[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return convert[T](string(OpSendAsync), "", v)
}

// CreateStream invokes the first matching stream handler through f. The
// handler's declared element type must be assignable to T; otherwise the
// stream is abandoned unconsumed and ErrReturnShapeMismatch is returned.
//
// The sequence is single-use. The invocation completes when the consumer
// reaches the end or stops ranging.
func CreateStream[T any](ctx context.Context, f Facade, args Arguments) (iter.Seq2[T, error], error) {
	seq, err := f.Stream(ctx, args)
	if err != nil {
		return nil, err
	}

	want := reflect.TypeFor[T]()
	if seq.ElemType != nil && !seq.ElemType.AssignableTo(want) {
		err := &ShapeMismatchError{Op: string(OpCreateStream), Shape: ShapeStream, Want: want, Got: seq.ElemType}
		seq.Abandon(err)
		return nil, err
	}
	return typed[T](string(OpCreateStream), "", seq.Items), nil
}

// Query runs every matching result handler through f lazily and yields their
// results as T in registration order. Under AggregateFirst at most one value
// is yielded.
//
// Example:
//
//	results, err := facade.Query[int](ctx, d, facade.Arguments{"id": 7})
//	if err != nil {
//	    return err
//	}
//	for n, err := range results {
//	    ...
//	}
func Query[T any](ctx context.Context, f Facade, args Arguments) (iter.Seq2[T, error], error) {
	seq, err := aggregateAs(ctx, f, OpAggregate, args, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return typed[T](string(OpAggregate), "", seq), nil
}

// QueryAsync is Query over result and async-result handlers, awaiting each
// element.
func QueryAsync[T any](ctx context.Context, f Facade, args Arguments) (iter.Seq2[T, error], error) {
	seq, err := aggregateAs(ctx, f, OpAggregateAsync, args, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return typed[T](string(OpAggregateAsync), "", seq), nil
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// typedFacade is implemented by facades that check the requested result type
// inside the invocation, so a mismatch completes it as failed.
type typedFacade interface {
	invokeAs(ctx context.Context, op Operation, args Arguments, want reflect.Type) (any, error)
	aggregateAs(ctx context.Context, op Operation, args Arguments, want reflect.Type) (iter.Seq2[any, error], error)
}

func invokeAs(ctx context.Context, f Facade, op Operation, args Arguments, want reflect.Type) (any, error) {
	if tf, ok := f.(typedFacade); ok {
		return tf.invokeAs(ctx, op, args, want)
	}
	if op == OpSendAsync {
		return f.InvokeAsync(ctx, args)
	}
	return f.Invoke(ctx, args)
}

func aggregateAs(ctx context.Context, f Facade, op Operation, args Arguments, want reflect.Type) (iter.Seq2[any, error], error) {
	if tf, ok := f.(typedFacade); ok {
		return tf.aggregateAs(ctx, op, args, want)
	}
	if op == OpAggregateAsync {
		return f.AggregateAsync(ctx, args)
	}
	return f.Aggregate(ctx, args)
}
