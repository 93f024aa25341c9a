package interceptor

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/bjaus/facade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greet() *facade.EntryPoint {
	return facade.NewFunc("Greet", func(context.Context, facade.Values) (string, error) {
		return "hi", nil
	}, facade.WithOwner("Greeter"))
}

func failing(name string, err error) *facade.EntryPoint {
	return facade.NewFunc(name, func(context.Context, facade.Values) (string, error) {
		return "", err
	})
}

func number(name string, n int) *facade.EntryPoint {
	return facade.NewFunc(name, func(context.Context, facade.Values) (int, error) {
		return n, nil
	})
}

func counter(n int) *facade.EntryPoint {
	return facade.NewStream("Count", func(context.Context, facade.Values) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			for i := range n {
				if !yield(i, nil) {
					return
				}
			}
		}
	})
}

func TestSingleRecipient(t *testing.T) {
	tests := []struct {
		name       string
		op         facade.Operation
		aggregated bool
		want       bool
	}{
		{name: "send", op: facade.OpSend, want: true},
		{name: "send async", op: facade.OpSendAsync, want: true},
		{name: "publish one", op: facade.OpPublish, want: true},
		{name: "publish many", op: facade.OpPublish, aggregated: true, want: false},
		{name: "publish async one", op: facade.OpPublishAsync, want: true},
		{name: "aggregate", op: facade.OpAggregate, want: false},
		{name: "stream", op: facade.OpCreateStream, want: false},
		{name: "route", op: facade.OpRoute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &facade.Invocation{Operation: tt.op, Aggregated: tt.aggregated}
			assert.Equal(t, tt.want, singleRecipient(inv))
		})
	}
}

func TestSettle(t *testing.T) {
	t.Run("eager result settles immediately", func(t *testing.T) {
		var got error
		called := false
		boom := errors.New("boom")

		v := settle(&facade.Invocation{Operation: facade.OpSend}, "x", boom, func(err error) {
			called = true
			got = err
		})

		assert.Equal(t, "x", v)
		assert.True(t, called)
		assert.ErrorIs(t, got, boom)
	})

	t.Run("lazy result settles when consumed", func(t *testing.T) {
		called := 0
		seq := iter.Seq2[any, error](func(yield func(any, error) bool) {
			_ = yield(1, nil) && yield(2, nil)
		})

		v := settle(&facade.Invocation{Operation: facade.OpAggregate}, seq, nil, func(error) { called++ })
		assert.Zero(t, called)

		wrapped, ok := v.(iter.Seq2[any, error])
		require.True(t, ok)
		for range wrapped {
		}
		assert.Equal(t, 1, called)
	})

	t.Run("lazy failure settles immediately", func(t *testing.T) {
		called := 0
		settle(&facade.Invocation{Operation: facade.OpAggregate}, nil, errors.New("boom"), func(error) { called++ })
		assert.Equal(t, 1, called)
	})
}
