package interceptor

import (
	"github.com/bjaus/facade"
	"go.uber.org/zap"
)

// FromConfig returns the interceptor options implied by cfg: Timeout when
// cfg.Timeout is set and Retry when more than one attempt is configured.
// Retry is installed outside Timeout, so each attempt gets the full timeout.
func FromConfig(cfg facade.Config, logger *zap.Logger) []facade.Option {
	var opts []facade.Option
	if cfg.Retry.Attempts > 1 {
		opts = append(opts, facade.WithInterceptor(NewRetry(cfg.Retry.Attempts, cfg.Retry.Delay, logger)))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, facade.WithInterceptor(NewTimeout(cfg.Timeout)))
	}
	return opts
}
