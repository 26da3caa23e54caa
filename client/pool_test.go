package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	mocks "github.com/sendly/sendly-rosetta/mocks/client"
)

func TestNewPool(t *testing.T) {
	t.Run("requires endpoints", func(t *testing.T) {
		pool, err := NewPool(nil, nil)
		assert.Nil(t, pool)
		assert.ErrorIs(t, err, ErrNoEndpoints)
	})

	t.Run("starts on the first endpoint", func(t *testing.T) {
		pool, err := NewPool([]string{"a", "b"}, nil)
		assert.NoError(t, err)
		assert.Equal(t, 2, pool.Len())
		assert.Equal(t, 0, pool.Cursor())
		assert.Equal(t, "b", pool.Endpoint(1))
	})
}

func closableClient(t *testing.T) *mocks.Client {
	c := mocks.NewClient(t)
	c.On("Close").Return().Maybe()
	return c
}

func TestPoolRotation(t *testing.T) {
	ctx := context.Background()

	newPool := func(t *testing.T) (*Pool, *mockDialer) {
		dialer := newMockDialer(map[string]*mocks.Client{
			"a": closableClient(t),
			"b": closableClient(t),
			"c": closableClient(t),
		})
		pool, err := NewPool([]string{"a", "b", "c"}, dialer.dial)
		assert.NoError(t, err)
		return pool, dialer
	}

	t.Run("dials lazily and reuses the client", func(t *testing.T) {
		pool, dialer := newPool(t)

		_, first, err := pool.Current(ctx)
		assert.NoError(t, err)
		_, second, err := pool.Current(ctx)
		assert.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, dialer.dials["a"])
		assert.Zero(t, dialer.dials["b"])
	})

	t.Run("wraps around", func(t *testing.T) {
		pool, _ := newPool(t)

		for _, want := range []int{1, 2, 0} {
			index, c, err := pool.Rotate(ctx, pool.Cursor())
			assert.NoError(t, err)
			assert.NotNil(t, c)
			assert.Equal(t, want, index)
		}
	})

	t.Run("stale rotation keeps the cursor", func(t *testing.T) {
		pool, _ := newPool(t)

		index, _, err := pool.Rotate(ctx, 0)
		assert.NoError(t, err)
		assert.Equal(t, 1, index)

		// a second caller that also failed on endpoint 0
		index, _, err = pool.Rotate(ctx, 0)
		assert.NoError(t, err)
		assert.Equal(t, 1, index)
		assert.Equal(t, 1, pool.Cursor())
	})

	t.Run("rotation redials the new endpoint", func(t *testing.T) {
		pool, dialer := newPool(t)

		_, _, err := pool.Rotate(ctx, 0)
		assert.NoError(t, err)
		_, _, err = pool.Rotate(ctx, 1)
		assert.NoError(t, err)
		_, _, err = pool.Rotate(ctx, 2)
		assert.NoError(t, err)
		_, _, err = pool.Rotate(ctx, 0)
		assert.NoError(t, err)

		assert.Equal(t, 2, dialer.dials["b"])
	})

	t.Run("restore", func(t *testing.T) {
		pool, _ := newPool(t)

		_, _, err := pool.Rotate(ctx, 0)
		assert.NoError(t, err)
		pool.Restore(0)
		assert.Equal(t, 0, pool.Cursor())
	})

	t.Run("dial failure", func(t *testing.T) {
		pool, dialer := newPool(t)
		dialer.failing["a"] = errors.New("connection refused")

		index, c, err := pool.Current(ctx)
		assert.Equal(t, 0, index)
		assert.Nil(t, c)
		assert.ErrorIs(t, err, ErrDial)
		assert.Equal(t, ClassFatal, Classify(err))
	})
}

func TestPoolClientLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("replaced client is closed on last release", func(t *testing.T) {
		a, b := mocks.NewClient(t), mocks.NewClient(t)
		dialer := newMockDialer(map[string]*mocks.Client{"a": a, "b": b})
		pool, err := NewPool([]string{"a", "b"}, dialer.dial)
		assert.NoError(t, err)

		_, held, err := pool.Current(ctx)
		assert.NoError(t, err)

		// back on a: the held client is replaced but still in use
		_, rotated, err := pool.Rotate(ctx, 0)
		assert.NoError(t, err)
		pool.Release(rotated)
		pool.Restore(0)
		a.AssertNotCalled(t, "Close")

		a.On("Close").Return().Once()
		pool.Release(held)
		a.AssertNumberOfCalls(t, "Close", 1)
	})

	t.Run("replaced idle client is closed at once", func(t *testing.T) {
		a, b := mocks.NewClient(t), mocks.NewClient(t)
		dialer := newMockDialer(map[string]*mocks.Client{"a": a, "b": b})
		pool, err := NewPool([]string{"a", "b"}, dialer.dial)
		assert.NoError(t, err)

		_, c, err := pool.Current(ctx)
		assert.NoError(t, err)
		pool.Release(c)

		_, rotated, err := pool.Rotate(ctx, 0)
		assert.NoError(t, err)
		pool.Release(rotated)

		a.On("Close").Return().Once()
		pool.Restore(0)
		a.AssertNumberOfCalls(t, "Close", 1)

		_, c, err = pool.Current(ctx)
		assert.NoError(t, err)
		pool.Release(c)
		assert.Equal(t, 2, dialer.dials["a"])
	})

	t.Run("close shuts every client", func(t *testing.T) {
		a, b := mocks.NewClient(t), mocks.NewClient(t)
		dialer := newMockDialer(map[string]*mocks.Client{"a": a, "b": b})
		pool, err := NewPool([]string{"a", "b"}, dialer.dial)
		assert.NoError(t, err)

		_, _, err = pool.Current(ctx)
		assert.NoError(t, err)
		_, _, err = pool.Rotate(ctx, 0)
		assert.NoError(t, err)

		a.On("Close").Return().Once()
		b.On("Close").Return().Once()
		pool.Close()
	})
}
