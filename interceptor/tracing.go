package interceptor

import (
	"context"
	"fmt"

	"github.com/bjaus/facade"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/bjaus/facade"

// Tracing starts an OpenTelemetry span per invocation. The span is named
// "<facade>.<method>" and ends when the invocation completes, which for
// streams and aggregated queries is when the sequence ends.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing creates a Tracing interceptor using tp.
//
//	interceptor.NewTracing(otel.GetTracerProvider())
func NewTracing(tp trace.TracerProvider) *Tracing {
	return &Tracing{tracer: tp.Tracer(tracerName)}
}

// InterceptAction implements facade.ActionInterceptor.
func (t *Tracing) InterceptAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	ctx, span := t.start(ctx, inv)
	err := next(ctx)
	end(span, err)
	return err
}

// InterceptAsyncAction implements facade.AsyncActionInterceptor.
func (t *Tracing) InterceptAsyncAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	ctx, span := t.start(ctx, inv)
	err := next(ctx)
	end(span, err)
	return err
}

// InterceptResult implements facade.ResultInterceptor.
func (t *Tracing) InterceptResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	ctx, span := t.start(ctx, inv)
	v, err := next(ctx)
	return settle(inv, v, err, func(err error) { end(span, err) }), err
}

// InterceptAsyncResult implements facade.AsyncResultInterceptor.
func (t *Tracing) InterceptAsyncResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	ctx, span := t.start(ctx, inv)
	v, err := next(ctx)
	return settle(inv, v, err, func(err error) { end(span, err) }), err
}

// InterceptStream implements facade.StreamInterceptor.
func (t *Tracing) InterceptStream(ctx context.Context, inv *facade.Invocation, next facade.StreamNext) (facade.Sequence, error) {
	ctx, span := t.start(ctx, inv)
	seq, err := next(ctx)
	if err != nil {
		end(span, err)
		return seq, err
	}
	return seq.Observe(func(err error) { end(span, err) }), nil
}

func (t *Tracing) start(ctx context.Context, inv *facade.Invocation) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName(inv),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("facade.invocation_id", inv.ID),
			attribute.String("facade.name", inv.Facade),
			attribute.String("facade.operation", string(inv.Operation)),
			attribute.String("facade.method", inv.Method),
			attribute.String("facade.owner", inv.Owner),
			attribute.String("facade.marker", string(inv.Marker)),
			attribute.String("facade.shape", inv.Shape.String()),
			attribute.Int("facade.handlers", len(inv.Handlers)),
			attribute.Bool("facade.aggregated", inv.Aggregated),
		),
	)
}

func end(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case facade.IsCanceled(err):
		span.SetAttributes(attribute.Bool("facade.canceled", true))
		span.SetStatus(codes.Error, err.Error())
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func spanName(inv *facade.Invocation) string {
	if inv.Facade == "" {
		return inv.Method
	}
	return fmt.Sprintf("%s.%s", inv.Facade, inv.Method)
}
