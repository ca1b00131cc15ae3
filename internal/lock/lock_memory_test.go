package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hmdamart/pkg/platform/sentinel"
)

func TestInMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire conflicts until release", func(t *testing.T) {
		l := NewInMemory()
		release, err := l.Acquire(ctx, "k")
		require.NoError(t, err)
		assert.True(t, l.Held("k"))

		_, err = l.Acquire(ctx, "k")
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		require.NoError(t, release(ctx))
		assert.False(t, l.Held("k"))

		release2, err := l.Acquire(ctx, "k")
		require.NoError(t, err)
		require.NoError(t, release2(ctx))
	})

	t.Run("keys are independent", func(t *testing.T) {
		l := NewInMemory()
		_, err := l.Acquire(ctx, "a")
		require.NoError(t, err)
		_, err = l.Acquire(ctx, "b")
		assert.NoError(t, err)
	})

	t.Run("stale release does not free a new holder", func(t *testing.T) {
		l := NewInMemory()
		release, err := l.Acquire(ctx, "k")
		require.NoError(t, err)
		require.NoError(t, release(ctx))

		_, err = l.Acquire(ctx, "k")
		require.NoError(t, err)
		require.NoError(t, release(ctx))
		assert.True(t, l.Held("k"))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewInMemory().Acquire(cctx, "k")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("exactly one concurrent winner", func(t *testing.T) {
		l := NewInMemory()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.Acquire(ctx, "k"); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
