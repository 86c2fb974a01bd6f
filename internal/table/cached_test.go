package table_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	redisad "roomshare/internal/adapters/redis"
	"roomshare/internal/storage/memory"
	"roomshare/internal/table"
)

// jsonCache mimics the Redis adapter: values round-trip through JSON and a
// canceled context fails the call.
type jsonCache struct{ store map[string][]byte }

func (c *jsonCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *jsonCache) Set(ctx context.Context, key string, v any, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *jsonCache) Del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(c.store, key)
	return nil
}

func TestCached_ServesFromCacheUntilWrite(t *testing.T) {
	store := memory.New()
	store.Seed("fav", [][]any{{"username", "property_id"}, {"alice", 1}})
	cache := &jsonCache{store: map[string][]byte{}}
	tbl := table.NewCached(table.New(store, "fav", []string{"username", "property_id"}), cache, 10*time.Minute)
	ctx := context.Background()

	rows, err := tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Contains(t, cache.store, "tab:fav")

	// change the backing tab behind the cache's back
	store.Seed("fav", [][]any{{"username", "property_id"}, {"alice", 1}, {"bob", 3}})
	rows, err = tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1, "served from cache")
	require.Equal(t, "1", table.Key(rows[0]["property_id"]))
	require.Equal(t, 1, rows[0].Pos(), "position survives the JSON round trip")

	// a write through the accessor drops the cached copy
	require.NoError(t, tbl.AppendRow(ctx, []any{"carol", "4"}))
	require.NotContains(t, cache.store, "tab:fav")

	rows, err = tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestCached_InvalidatesOnDelete(t *testing.T) {
	store := memory.New()
	store.Seed("fav", [][]any{{"username", "property_id"}, {"alice", 1}, {"alice", 2}})
	cache := &jsonCache{store: map[string][]byte{}}
	tbl := table.NewCached(table.New(store, "fav", nil), cache, time.Minute)
	ctx := context.Background()

	_, err := tbl.ReadAll(ctx)
	require.NoError(t, err)

	n, err := tbl.DeleteWhere(ctx, func(r table.Row) bool { return table.Key(r["property_id"]) == "2" })
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, err := tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

// cancelAfterAppend cancels the request context once the remote append has
// landed, like a client that disconnects mid-request.
type cancelAfterAppend struct {
	*memory.Store
	cancel context.CancelFunc
}

func (s *cancelAfterAppend) Append(ctx context.Context, tab string, rows [][]any) error {
	err := s.Store.Append(ctx, tab, rows)
	s.cancel()
	return err
}

func TestCached_InvalidatesAfterRequestCanceled(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	cache := redisad.NewWithClient(rc, "test:")

	mem := memory.New()
	mem.Seed("chat", [][]any{{"timestamp", "sender", "text", "property_id"}, {"2024-01-01 10:00:00", "alice", "hi", 1}})
	ctx, cancel := context.WithCancel(context.Background())
	store := &cancelAfterAppend{Store: mem, cancel: cancel}
	tbl := table.NewCached(table.New(store, "chat", []string{"timestamp", "sender", "text", "property_id"}), cache, 10*time.Minute)

	rows, err := tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, tbl.AppendRow(ctx, []any{"2024-01-01 10:01:00", "bob", "hello", 1}))
	require.Error(t, ctx.Err())
	require.False(t, mr.Exists("test:tab:chat"), "cached rows dropped despite the canceled request")

	rows, err = tbl.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

// writeDuringRead lets a write land between the accessor loading the rows
// and the cache storing them.
type writeDuringRead struct {
	*memory.Store
	during func()
}

func (s *writeDuringRead) Rows(ctx context.Context, tab string) ([][]any, error) {
	rows, err := s.Store.Rows(ctx, tab)
	if f := s.during; f != nil {
		s.during = nil
		f()
	}
	return rows, err
}

func TestCached_ReadRacingWriteDoesNotCacheOldRows(t *testing.T) {
	mem := memory.New()
	mem.Seed("fav", [][]any{{"username", "property_id"}, {"alice", 1}})
	store := &writeDuringRead{Store: mem}
	cache := &jsonCache{store: map[string][]byte{}}
	tbl := table.NewCached(table.New(store, "fav", []string{"username", "property_id"}), cache, 10*time.Minute)
	ctx := context.Background()

	store.during = func() {
		require.NoError(t, tbl.AppendRow(ctx, []any{"bob", 2}))
	}
	rows, err := tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1, "the racing read still returns what it loaded")
	require.NotContains(t, cache.store, "tab:fav")

	rows, err = tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Contains(t, cache.store, "tab:fav")
}
