package interceptor

import (
	"context"
	"strings"
	"time"

	"github.com/bjaus/facade"
	"github.com/rcrowley/go-metrics"
	"github.com/samber/lo"
)

// Metrics records a timer and outcome counters per facade method:
//
//	facade.<facade>.<method>.duration
//	facade.<facade>.<method>.succeeded
//	facade.<facade>.<method>.failed
//	facade.<facade>.<method>.canceled
type Metrics struct {
	registry metrics.Registry
}

// NewMetrics creates a Metrics interceptor registering into r, or into
// metrics.DefaultRegistry when r is nil.
func NewMetrics(r metrics.Registry) *Metrics {
	if r == nil {
		r = metrics.DefaultRegistry
	}
	return &Metrics{registry: r}
}

// InterceptAction implements facade.ActionInterceptor.
func (m *Metrics) InterceptAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	start := time.Now()
	err := next(ctx)
	m.record(inv, start, err)
	return err
}

// InterceptAsyncAction implements facade.AsyncActionInterceptor.
func (m *Metrics) InterceptAsyncAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	start := time.Now()
	err := next(ctx)
	m.record(inv, start, err)
	return err
}

// InterceptResult implements facade.ResultInterceptor.
func (m *Metrics) InterceptResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	start := time.Now()
	v, err := next(ctx)
	return settle(inv, v, err, func(err error) { m.record(inv, start, err) }), err
}

// InterceptAsyncResult implements facade.AsyncResultInterceptor.
func (m *Metrics) InterceptAsyncResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	start := time.Now()
	v, err := next(ctx)
	return settle(inv, v, err, func(err error) { m.record(inv, start, err) }), err
}

// InterceptStream implements facade.StreamInterceptor.
func (m *Metrics) InterceptStream(ctx context.Context, inv *facade.Invocation, next facade.StreamNext) (facade.Sequence, error) {
	start := time.Now()
	seq, err := next(ctx)
	if err != nil {
		m.record(inv, start, err)
		return seq, err
	}
	return seq.Observe(func(err error) { m.record(inv, start, err) }), nil
}

func (m *Metrics) record(inv *facade.Invocation, start time.Time, err error) {
	name := MetricName(inv)
	metrics.GetOrRegisterTimer(name+".duration", m.registry).UpdateSince(start)

	outcome := "succeeded"
	switch {
	case err == nil:
	case facade.IsCanceled(err):
		outcome = "canceled"
	default:
		outcome = "failed"
	}
	metrics.GetOrRegisterCounter(name+"."+outcome, m.registry).Inc(1)
}

// MetricName returns the metric prefix used for inv.
func MetricName(inv *facade.Invocation) string {
	return strings.Join(lo.Compact([]string{"facade", inv.Facade, inv.Method}), ".")
}
