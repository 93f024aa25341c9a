package interceptor

import (
	"context"
	"errors"
	"time"

	"github.com/bjaus/facade"
	"github.com/code19m/errx"
	"go.uber.org/zap"
)

const logMessage = "processed facade invocation"

// Logging writes one entry per invocation once it has completed.
//
// The level adapts to the outcome:
//   - success and cancellation: INFO
//   - no match, shape mismatch and non-internal errors: WARN
//   - internal errors: ERROR
type Logging struct {
	logger *zap.Logger
}

// NewLogging creates a Logging interceptor writing to logger.
func NewLogging(logger *zap.Logger) *Logging {
	return &Logging{logger: logger.Named("facade_interceptor")}
}

// InterceptAction implements facade.ActionInterceptor.
func (l *Logging) InterceptAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	start := time.Now()
	err := next(ctx)
	l.log(inv, start, err)
	return err
}

// InterceptAsyncAction implements facade.AsyncActionInterceptor.
func (l *Logging) InterceptAsyncAction(ctx context.Context, inv *facade.Invocation, next facade.ActionNext) error {
	start := time.Now()
	err := next(ctx)
	l.log(inv, start, err)
	return err
}

// InterceptResult implements facade.ResultInterceptor.
func (l *Logging) InterceptResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	start := time.Now()
	v, err := next(ctx)
	return settle(inv, v, err, func(err error) { l.log(inv, start, err) }), err
}

// InterceptAsyncResult implements facade.AsyncResultInterceptor.
func (l *Logging) InterceptAsyncResult(ctx context.Context, inv *facade.Invocation, next facade.ResultNext) (any, error) {
	start := time.Now()
	v, err := next(ctx)
	return settle(inv, v, err, func(err error) { l.log(inv, start, err) }), err
}

// InterceptStream implements facade.StreamInterceptor.
func (l *Logging) InterceptStream(ctx context.Context, inv *facade.Invocation, next facade.StreamNext) (facade.Sequence, error) {
	start := time.Now()
	seq, err := next(ctx)
	if err != nil {
		l.log(inv, start, err)
		return seq, err
	}
	return seq.Observe(func(err error) { l.log(inv, start, err) }), nil
}

func (l *Logging) log(inv *facade.Invocation, start time.Time, err error) {
	logger := l.logger.With(
		zap.String("invocation_id", inv.ID),
		zap.String("facade", inv.Facade),
		zap.String("operation", string(inv.Operation)),
		zap.String("method", inv.Method),
		zap.String("owner", inv.Owner),
		zap.Stringer("shape", inv.Shape),
		zap.Int("handlers", len(inv.Handlers)),
		zap.Bool("aggregated", inv.Aggregated),
		zap.Duration("duration", time.Since(start)),
	)

	switch {
	case err == nil:
		logger.Info(logMessage)
	case facade.IsCanceled(err):
		logger.Info(logMessage, zap.Bool("canceled", true), zap.NamedError("cause", err))
	case errors.Is(err, facade.ErrNoMatchingEntryPoint), errors.Is(err, facade.ErrReturnShapeMismatch):
		logger.Warn(logMessage, zap.Any("error", errorObject(err)))
	case errx.GetType(err) == errx.T_Internal:
		logger.Error(logMessage, zap.Any("error", errorObject(err)))
	default:
		logger.Warn(logMessage, zap.Any("error", errorObject(err)))
	}
}

// errorObject converts err to a structured map for logging.
func errorObject(err error) map[string]any {
	e := errx.AsErrorX(err)
	return map[string]any{
		"code":    e.Code(),
		"message": e.Error(),
		"type":    e.Type().String(),
		"details": e.Details(),
	}
}
