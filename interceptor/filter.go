package interceptor

import (
	"context"
	"fmt"
	"slices"

	"github.com/bjaus/facade"
	"github.com/samber/lo"
)

// Filter removes handlers for which keep returns false before they run. When
// nothing is left the call fails with facade.ErrNoMatchingEntryPoint
// without invoking any handler.
//
//	// Only handlers owned by the billing service.
//	interceptor.NewFilter(func(h facade.Handler) bool {
//	    return h.Owner == "billing"
//	})
type Filter struct {
	keep func(facade.Handler) bool
}

// NewFilter creates a Filter interceptor.
func NewFilter(keep func(facade.Handler) bool) *Filter {
	return &Filter{keep: keep}
}

// ByMarker keeps handlers carrying marker m.
func ByMarker(m facade.Marker) *Filter {
	return NewFilter(func(h facade.Handler) bool {
		return h.Marker == m
	})
}

func (f *Filter) apply(inv *facade.Invocation) ([]facade.Handler, error) {
	kept := lo.Filter(inv.Active(), func(h facade.Handler, _ int) bool {
		return f.keep(h)
	})
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: every handler of %s was filtered out", facade.ErrNoMatchingEntryPoint, inv.Method)
	}
	return kept, nil
}

// InterceptAction implements facade.ActionInterceptor.
func (f *Filter) InterceptAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	kept, err := f.apply(inv)
	if err != nil {
		return err
	}
	return next(ctx, kept...)
}

// InterceptAsyncAction implements facade.AsyncActionInterceptor.
func (f *Filter) InterceptAsyncAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	kept, err := f.apply(inv)
	if err != nil {
		return err
	}
	return next(ctx, kept...)
}

// InterceptResult implements facade.ResultInterceptor.
func (f *Filter) InterceptResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	kept, err := f.apply(inv)
	if err != nil {
		return nil, err
	}
	return next(ctx, kept...)
}

// InterceptAsyncResult implements facade.AsyncResultInterceptor.
func (f *Filter) InterceptAsyncResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	kept, err := f.apply(inv)
	if err != nil {
		return nil, err
	}
	return next(ctx, kept...)
}

// InterceptStream implements facade.StreamInterceptor.
func (f *Filter) InterceptStream(ctx context.Context, inv *facade.Invocation, next facade.StreamNext) (facade.Sequence, error) {
	kept, err := f.apply(inv)
	if err != nil {
		return facade.Sequence{}, err
	}
	return next(ctx, kept...)
}

// Reorder sorts handlers with cmp before they run. The sort is stable, so
// handlers cmp considers equal keep registration order.
type Reorder struct {
	facade.Passthrough

	cmp func(a, b facade.Handler) int
}

// NewReorder creates a Reorder interceptor. Only multi-recipient calls are
// affected: Publish, PublishAsync, Aggregate and AggregateAsync.
func NewReorder(cmp func(a, b facade.Handler) int) *Reorder {
	return &Reorder{cmp: cmp}
}

func (r *Reorder) sorted(inv *facade.Invocation) []facade.Handler {
	hs := inv.Active()
	slices.SortStableFunc(hs, r.cmp)
	return hs
}

// InterceptAction implements facade.ActionInterceptor.
func (r *Reorder) InterceptAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	return next(ctx, r.sorted(inv)...)
}

// InterceptAsyncAction implements facade.AsyncActionInterceptor.
func (r *Reorder) InterceptAsyncAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	return next(ctx, r.sorted(inv)...)
}

// InterceptResult implements facade.ResultInterceptor.
func (r *Reorder) InterceptResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	return next(ctx, r.sorted(inv)...)
}

// InterceptAsyncResult implements facade.AsyncResultInterceptor.
func (r *Reorder) InterceptAsyncResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	return next(ctx, r.sorted(inv)...)
}
