package interceptor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bjaus/facade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFromConfig(t *testing.T) {
	t.Run("defaults install nothing", func(t *testing.T) {
		cfg, err := facade.ParseConfig([]byte(`{}`))
		require.NoError(t, err)

		assert.Empty(t, FromConfig(cfg, zap.NewNop()))
	})

	t.Run("retry and timeout", func(t *testing.T) {
		cfg, err := facade.ParseConfig([]byte("timeout: 1s\nretry:\n  attempts: 3\n  delay: 1ms\n"))
		require.NoError(t, err)

		opts := FromConfig(cfg, zap.NewNop())
		assert.Len(t, opts, 2)

		var calls atomic.Int32
		d := facade.New([]*facade.EntryPoint{facade.NewFunc("Flaky", func(ctx context.Context, _ facade.Values) (time.Duration, error) {
			deadline, ok := ctx.Deadline()
			if !ok {
				return 0, assert.AnError
			}
			if calls.Add(1) < 3 {
				return 0, assert.AnError
			}
			return time.Until(deadline), nil
		})}, opts...)

		left, err := facade.Send[time.Duration](context.Background(), d, facade.Arguments{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, calls.Load())
		assert.Positive(t, left)
	})
}
