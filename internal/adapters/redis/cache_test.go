package redisad

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	type rows []map[string]any
	in := rows{{"username": "alice", "property_id": 2.0}}
	require.NoError(t, c.Set(ctx, "tab:fav", in, 60))
	require.True(t, mr.Exists("test:tab:fav"))

	var out rows
	ok, err := c.Get(ctx, "tab:fav", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, out)

	require.NoError(t, c.Del(ctx, "tab:fav"))
	ok, err = c.Get(ctx, "tab:fav", &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_TTLExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10))
	mr.FastForward(11 * time.Second)

	var s string
	ok, err := c.Get(ctx, "k", &s)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_CorruptValueIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("test:k", "{not json"))

	var v map[string]any
	ok, err := c.Get(context.Background(), "k", &v)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_ServerDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	var v string
	_, err := c.Get(context.Background(), "k", &v)
	require.Error(t, err)
}
