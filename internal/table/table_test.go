package table_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"roomshare/internal/domain"
	"roomshare/internal/storage/memory"
	"roomshare/internal/table"
)

var chatHeader = []string{"timestamp", "sender", "text", "property_id"}

// countingStore records destructive calls so tests can assert a rewrite
// did or did not happen.
type countingStore struct {
	*memory.Store
	clears int
}

func (c *countingStore) Clear(ctx context.Context, tab string) error {
	c.clears++
	return c.Store.Clear(ctx, tab)
}

func TestAppendRow_HeaderInsertedOnce(t *testing.T) {
	store := memory.New("chat")
	tbl := table.New(store, "chat", chatHeader)
	ctx := context.Background()

	require.NoError(t, tbl.AppendRow(ctx, []any{"2024-05-01 10:00:00", "alice", "hello", "1"}))
	require.NoError(t, tbl.AppendRow(ctx, []any{"2024-05-01 10:01:00", "bob", "hi", "1"}))

	raw, err := store.Rows(ctx, "chat")
	require.NoError(t, err)
	require.Len(t, raw, 3)
	require.Equal(t, []any{"timestamp", "sender", "text", "property_id"}, raw[0])
	require.Equal(t, "alice", raw[1][1])
	require.Equal(t, "bob", raw[2][1])
}

func TestAppendRow_MismatchedHeaderGetsInsertedAbove(t *testing.T) {
	store := memory.New()
	store.Seed("chat", [][]any{{"2024-05-01 10:00:00", "alice", "legacy row", "1"}})
	tbl := table.New(store, "chat", chatHeader)
	ctx := context.Background()

	require.NoError(t, tbl.AppendRow(ctx, []any{"2024-05-02 09:00:00", "bob", "new", "1"}))

	rows, err := tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "legacy row", rows[0].String("text"))
	require.Equal(t, "new", rows[1].String("text"))
}

func TestReadAll_Decoding(t *testing.T) {
	store := memory.New()
	store.Seed("props", [][]any{
		{"名称", "家賃", "名称", ""},
		{"A棟", 8.5, "ignored", "x"},
		{"", "", nil},
		{"B棟"},
	})
	tbl := table.New(store, "props", nil)

	rows, err := tbl.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2, "blank row skipped")
	require.Equal(t, "A棟", rows[0]["名称"], "first duplicate column wins")
	require.Equal(t, 8.5, rows[0]["家賃"])
	require.Equal(t, "", rows[1]["家賃"], "short rows padded")
	_, hasEmpty := rows[0][""]
	require.False(t, hasEmpty)
}

func TestReadAll_PositionsCountBlankLines(t *testing.T) {
	store := memory.New()
	store.Seed("props", [][]any{
		{"名称"},
		{"A棟"},
		{""},
		{},
		{"B棟"},
	})

	rows, err := table.New(store, "props", nil).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, rows[0].Pos())
	require.Equal(t, 4, rows[1].Pos(), "blank lines keep their numbers")
	require.Equal(t, 0, table.Row{"名称": "x"}.Pos())
}

func TestReadAll_EmptyAndHeaderOnly(t *testing.T) {
	store := memory.New("a")
	store.Seed("b", [][]any{{"username", "password"}})
	ctx := context.Background()

	rows, err := table.New(store, "a", nil).ReadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = table.New(store, "b", nil).ReadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestReadAll_MissingTab(t *testing.T) {
	_, err := table.New(memory.New(), "ghost", nil).ReadAll(context.Background())
	var tnf *domain.TableNotFoundError
	require.True(t, errors.As(err, &tnf))
}

func TestEnsureHeader_OnlyWhenEmpty(t *testing.T) {
	store := memory.New("users")
	tbl := table.New(store, "users", []string{"username", "password"})
	ctx := context.Background()

	require.NoError(t, tbl.EnsureHeader(ctx))
	require.NoError(t, tbl.EnsureHeader(ctx))

	raw, _ := store.Rows(ctx, "users")
	require.Len(t, raw, 1)
}

func TestDeleteWhere_RemovesMatchingRowsOnly(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	store.Seed("fav", [][]any{
		{"username", "property_id"},
		{"alice", 1}, {"alice", 2}, {"bob", 2}, {"alice", 2},
	})
	tbl := table.New(store, "fav", []string{"username", "property_id"})
	ctx := context.Background()

	n, err := tbl.DeleteWhere(ctx, func(r table.Row) bool {
		return r.String("username") == "alice" && table.Key(r["property_id"]) == "2"
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rows, err := tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "alice", rows[0].String("username"))
	require.Equal(t, "1", rows[0].String("property_id"))
	require.Equal(t, "bob", rows[1].String("username"))

	raw, _ := store.Rows(ctx, "fav")
	require.Equal(t, []any{"username", "property_id"}, raw[0], "header rewritten")
	require.Equal(t, 1, store.clears)
}

// writeBackFails rejects the append that follows a Clear.
type writeBackFails struct {
	*memory.Store
	cleared bool
}

func (s *writeBackFails) Clear(ctx context.Context, tab string) error {
	s.cleared = true
	return s.Store.Clear(ctx, tab)
}

func (s *writeBackFails) Append(ctx context.Context, tab string, rows [][]any) error {
	if s.cleared {
		return &domain.RemoteStoreError{Op: "values.append", Tab: tab, Status: 503, Err: errors.New("backend error")}
	}
	return s.Store.Append(ctx, tab, rows)
}

func TestDeleteWhere_FailedWriteBackIsPartial(t *testing.T) {
	store := &writeBackFails{Store: memory.New()}
	store.Seed("fav", [][]any{{"username", "property_id"}, {"alice", 1}, {"alice", 2}})
	tbl := table.New(store, "fav", nil)

	_, err := tbl.DeleteWhere(context.Background(), func(r table.Row) bool { return table.Key(r["property_id"]) == "2" })
	require.ErrorIs(t, err, domain.ErrPartialWrite)
	require.True(t, domain.IsRemoteStore(err), "store error still visible")
}

func TestReplaceAll_ClearFailureIsNotPartial(t *testing.T) {
	tbl := table.New(memory.New(), "ghost", nil)
	err := tbl.ReplaceAll(context.Background(), []string{"a"}, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrPartialWrite)
}

func TestDeleteWhere_NoMatchSkipsRewrite(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	store.Seed("fav", [][]any{{"username", "property_id"}, {"alice", 1}})
	tbl := table.New(store, "fav", nil)

	n, err := tbl.DeleteWhere(context.Background(), func(table.Row) bool { return false })
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, store.clears)
}

func TestReplaceAll(t *testing.T) {
	store := memory.New()
	store.Seed("t", [][]any{{"a"}, {"1"}, {"2"}})
	tbl := table.New(store, "t", nil)
	ctx := context.Background()

	require.NoError(t, tbl.ReplaceAll(ctx, []string{"b"}, [][]any{{"9"}}))
	raw, _ := store.Rows(ctx, "t")
	require.Equal(t, [][]any{{"b"}, {"9"}}, raw)
}

func TestKeyAndCellString(t *testing.T) {
	require.Equal(t, "2", table.Key(2.0))
	require.Equal(t, "2", table.Key("2"))
	require.Equal(t, "2", table.Key(" 2.0 "))
	require.Equal(t, "A-12", table.Key("A-12"))
	require.Equal(t, "4.5", table.CellString(4.5))
	require.Equal(t, "true", table.CellString(true))
	require.Equal(t, "", table.CellString(nil))
}
