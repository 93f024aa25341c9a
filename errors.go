package facade

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNoMatchingEntryPoint is returned when no registered entry point is
	// structurally invocable with the supplied arguments. It is distinct from
	// a handler that ran and returned nothing.
	ErrNoMatchingEntryPoint = errors.New("no matching entry point")

	// ErrReturnShapeMismatch is returned when the entry point invoked on the
	// dispatcher is incompatible with the matched handler's return shape, or
	// when a produced value is not assignable to the requested type.
	ErrReturnShapeMismatch = errors.New("return shape mismatch")

	// ErrBinderNotRegistered is returned when a parameter declares a custom
	// binder marker that has no registered binder.
	ErrBinderNotRegistered = errors.New("binder not registered")

	// ErrStrategyAnchorNotFound is returned when AddStrategyBefore or
	// AddStrategyAfter references a strategy type absent from the chain.
	ErrStrategyAnchorNotFound = errors.New("binding strategy anchor not found")

	// ErrCanceled is returned when the call's context was canceled before or
	// during dispatch. The context cause is wrapped alongside it.
	ErrCanceled = errors.New("invocation canceled")

	// ErrParameterNotResolved is returned when no binding strategy could
	// produce a value for a parameter.
	ErrParameterNotResolved = errors.New("parameter not resolved")

	// ErrServiceNotFound is returned by Services when no value is provided
	// for the requested type.
	ErrServiceNotFound = errors.New("service not found")

	// ErrDuplicateEntryPoint is returned when the same owner and signature is
	// registered twice under one facade.
	ErrDuplicateEntryPoint = errors.New("duplicate entry point")

	// ErrInvalidJSON is returned when the input is not a valid JSON object.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrSequenceConsumed is yielded when a single-use result sequence is
	// ranged over a second time.
	ErrSequenceConsumed = errors.New("sequence already consumed")
)

// ShapeMismatchError describes a ReturnShapeMismatch failure. It matches
// ErrReturnShapeMismatch with errors.Is.
type ShapeMismatchError struct {
	// Op is the dispatcher operation that was called, e.g. "Send".
	Op string

	// EntryPoint is the signature of the offending handler, if any.
	EntryPoint string

	// Shape is the handler's declared return shape.
	Shape ReturnShape

	// Want and Got are set when a produced value had the wrong type.
	Want reflect.Type
	Got  reflect.Type
}

func (e *ShapeMismatchError) Error() string {
	if e.Want != nil && e.EntryPoint == "" {
		return fmt.Sprintf("%s: %s: produced %v, want %v", ErrReturnShapeMismatch, e.Op, e.Got, e.Want)
	}
	if e.Want != nil {
		return fmt.Sprintf("%s: %s: %s produced %v, want %v", ErrReturnShapeMismatch, e.Op, e.EntryPoint, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: %s cannot invoke %s handler %s", ErrReturnShapeMismatch, e.Op, e.Shape, e.EntryPoint)
}

// Is reports whether target is ErrReturnShapeMismatch.
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrReturnShapeMismatch
}

func shapeMismatch(op string, ep *EntryPoint) error {
	return &ShapeMismatchError{Op: op, EntryPoint: ep.Signature(), Shape: ep.Shape()}
}

func typeMismatch(op, entryPoint string, want reflect.Type, got any) error {
	return &ShapeMismatchError{Op: op, EntryPoint: entryPoint, Want: want, Got: reflect.TypeOf(got)}
}

// canceled converts a done context into an error matching both ErrCanceled
// and the context's cause.
func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
}

// checkCanceled is the cancellation checkpoint used before resolving
// handlers and before each handler invocation.
func checkCanceled(ctx context.Context) error {
	if ctx.Err() != nil {
		return canceled(ctx)
	}
	return nil
}

// IsCanceled reports whether err represents an honored cancellation rather
// than an ordinary failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
