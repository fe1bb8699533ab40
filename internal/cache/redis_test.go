package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	srv := miniredis.RunT(t)
	return NewRedis(srv.Addr(), "", 0)
}

func TestRedisSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "availability:pateros:2025-11-20", []byte(`{"remaining":5}`), time.Minute))

	val, ok, err := c.Get(ctx, "availability:pateros:2025-11-20")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"remaining":5}`, string(val))
}

func TestRedisGetMiss(t *testing.T) {
	c := newTestCache(t)

	_, ok, err := c.Get(context.Background(), "availability:pateros:2025-11-20")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
