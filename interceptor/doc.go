// Package interceptor provides standard interceptors for facade dispatchers.
//
// Each interceptor implements the facade interceptor roles it can
// meaningfully wrap and is installed with facade.WithInterceptor:
//
//	d := facade.New(entries,
//	    facade.WithInterceptor(interceptor.NewRecovery(logger)),
//	    facade.WithInterceptor(interceptor.NewLogging(logger)),
//	    facade.WithInterceptor(interceptor.NewTracing(otel.GetTracerProvider())),
//	    facade.WithInterceptor(interceptor.NewMetrics(metrics.DefaultRegistry)),
//	)
//
// Interceptors run in registration order, the first registered outermost.
// For lazy results (aggregated queries and streams) observation ends when
// the consumer finishes the sequence, not when the interceptor returns.
package interceptor
