package interceptor

import (
	"context"
	"fmt"
	"runtime"

	"github.com/bjaus/facade"
	"github.com/code19m/errx"
	"go.uber.org/zap"
)

// Recovery converts a panic raised by a handler or an inner interceptor into
// an internal errx error carrying the panic value and stack trace.
//
// Register it first so it wraps everything else. Panics raised while a
// stream or aggregated sequence is being consumed propagate to the
// consumer.
type Recovery struct {
	logger *zap.Logger
}

// NewRecovery creates a Recovery interceptor logging recovered panics to
// logger.
func NewRecovery(logger *zap.Logger) *Recovery {
	return &Recovery{logger: logger.Named("recovery_interceptor")}
}

// InterceptAction implements facade.ActionInterceptor.
func (r *Recovery) InterceptAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) (err error) {
	defer r.guard(inv, &err)
	return next(ctx)
}

// InterceptAsyncAction implements facade.AsyncActionInterceptor.
func (r *Recovery) InterceptAsyncAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) (err error) {
	defer r.guard(inv, &err)
	return next(ctx)
}

// InterceptResult implements facade.ResultInterceptor.
func (r *Recovery) InterceptResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (v any, err error) {
	defer r.guard(inv, &err)
	return next(ctx)
}

// InterceptAsyncResult implements facade.AsyncResultInterceptor.
func (r *Recovery) InterceptAsyncResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (v any, err error) {
	defer r.guard(inv, &err)
	return next(ctx)
}

// InterceptStream implements facade.StreamInterceptor.
func (r *Recovery) InterceptStream(ctx context.Context, inv *facade.Invocation, next facade.StreamNext) (seq facade.Sequence, err error) {
	defer r.guard(inv, &err)
	return next(ctx)
}

// guard must be deferred directly.
func (r *Recovery) guard(inv *facade.Invocation, err *error) {
	p := recover()
	if p == nil {
		return
	}

	stackTrace := make([]byte, 4096)
	stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

	r.logger.Error("panic recovered",
		zap.String("invocation_id", inv.ID),
		zap.String("facade", inv.Facade),
		zap.String("method", inv.Method),
		zap.String("panic_value", fmt.Sprintf("%v", p)),
		zap.ByteString("stack_trace", stackTrace),
	)

	*err = errx.New("panic recovered at recovery_interceptor",
		errx.WithType(errx.T_Internal),
		errx.WithDetails(errx.D{
			"method":      inv.Method,
			"stack_trace": string(stackTrace),
			"panic_value": fmt.Sprintf("%v", p),
		}),
	)
}
