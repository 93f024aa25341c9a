package facade

import (
	"context"
	"fmt"
	"runtime"
)

// Awaitable is an asynchronous value returned by ShapeAsyncVoid and
// ShapeAsyncResult handlers. Await blocks until the value is available or
// ctx is done.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// Future is a typed Awaitable completed exactly once.
//
// The dispatcher owns no goroutines. A handler that wants to run work in the
// background starts it itself, typically with Go:
//
//	facade.NewAsyncFunc("Lookup", func(ctx context.Context, in facade.Values) *facade.Future[*User] {
//	    return facade.Go(func() (*User, error) {
//	        return repo.Find(ctx, facade.Value[string](in, "id"))
//	    })
//	})
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on a new goroutine and returns a Future for its outcome. A panic
// in fn completes the future with an error.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]
				f.err = fmt.Errorf("panic in future: %v\n%s", r, stack)
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Completed returns a Future that is already resolved with v and err.
func Completed[T any](v T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: v, err: err}
	close(f.done)
	return f
}

// Done returns a channel closed once the future has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get waits for the future and returns its typed outcome. If ctx is done
// first, Get returns a canceled error and the future keeps running.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, canceled(ctx)
	}
}

// Await implements Awaitable.
func (f *Future[T]) Await(ctx context.Context) (any, error) {
	v, err := f.Get(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// await resolves a handler's raw asynchronous value. A nil Awaitable is
// treated as completed with no value.
func await(ctx context.Context, v any) (any, error) {
	a, ok := v.(Awaitable)
	if !ok || isNil(a) {
		return v, nil
	}
	return a.Await(ctx)
}
