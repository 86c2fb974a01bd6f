// Package table exposes one spreadsheet tab as a row store.
//
// There is no transaction support underneath: ReplaceAll and DeleteWhere
// clear the tab and write it back, so a failure halfway (or a concurrent
// append from another session) can lose rows. Callers surface such errors
// instead of retrying, since a retry after a partial write duplicates rows.
package table

import (
	"context"
	"fmt"

	"roomshare/internal/domain"
)

// Row maps header names to cell values (string, float64 or bool).
type Row map[string]any

// PosKey holds the row's 1-based position below the header, blank rows
// included. Header cells with this name are ignored.
const PosKey = "\x00pos"

func (r Row) String(col string) string { return CellString(r[col]) }

// Pos returns the row's position below the header, or 0 when unknown.
// It survives a JSON round trip through the cache.
func (r Row) Pos() int {
	switch v := r[PosKey].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Accessor is the row-store view of one tab.
type Accessor interface {
	Name() string
	ReadAll(ctx context.Context) ([]Row, error)
	AppendRow(ctx context.Context, values []any) error
	EnsureHeader(ctx context.Context) error
	ReplaceAll(ctx context.Context, header []string, rows [][]any) error
	DeleteWhere(ctx context.Context, match func(Row) bool) (int, error)
}

// Store is the subset of domain.TableStore the accessor needs.
type Store interface {
	Header(ctx context.Context, tab string) ([]any, error)
	Rows(ctx context.Context, tab string) ([][]any, error)
	Append(ctx context.Context, tab string, rows [][]any) error
	InsertHeader(ctx context.Context, tab string, header []any) error
	Clear(ctx context.Context, tab string) error
}

type Table struct {
	store  Store
	name   string
	header []string
}

// New binds a tab. header is the expected column list; it may be nil for
// tabs the app only reads.
func New(store Store, name string, header []string) *Table {
	return &Table{store: store, name: name, header: header}
}

func (t *Table) Name() string { return t.name }

// ReadAll returns every data row keyed by the row-1 header. Short rows are
// padded with "", blank rows are skipped (their positions are not reused),
// and a repeated header name keeps its first column.
func (t *Table) ReadAll(ctx context.Context) ([]Row, error) {
	raw, err := t.store.Rows(ctx, t.name)
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, nil
	}
	cols := headerNames(raw[0])
	out := make([]Row, 0, len(raw)-1)
	for i, r := range raw[1:] {
		if blank(r) {
			continue
		}
		row := toRow(cols, r)
		row[PosKey] = i + 1
		out = append(out, row)
	}
	return out, nil
}

// AppendRow adds one row at the end, first inserting the expected header at
// row 1 unless row 1 already matches it exactly.
func (t *Table) AppendRow(ctx context.Context, values []any) error {
	if len(t.header) > 0 {
		got, err := t.store.Header(ctx, t.name)
		if err != nil {
			return err
		}
		if !sameHeader(got, t.header) {
			if err := t.store.InsertHeader(ctx, t.name, anySlice(t.header)); err != nil {
				return fmt.Errorf("insert header into %s: %w", t.name, err)
			}
		}
	}
	return t.store.Append(ctx, t.name, [][]any{values})
}

// EnsureHeader writes the expected header only when the tab has no rows at all.
func (t *Table) EnsureHeader(ctx context.Context) error {
	if len(t.header) == 0 {
		return nil
	}
	got, err := t.store.Header(ctx, t.name)
	if err != nil {
		return err
	}
	if len(got) > 0 {
		return nil
	}
	return t.store.Append(ctx, t.name, [][]any{anySlice(t.header)})
}

// ReplaceAll clears the tab and writes header plus rows in one append.
func (t *Table) ReplaceAll(ctx context.Context, header []string, rows [][]any) error {
	if err := t.replace(ctx, anySlice(header), rows); err != nil {
		return fmt.Errorf("rewrite %s: %w", t.name, err)
	}
	return nil
}

// DeleteWhere rewrites the tab without the rows for which match returns
// true. The header row is written back unchanged. Nothing is rewritten when
// no row matches.
func (t *Table) DeleteWhere(ctx context.Context, match func(Row) bool) (int, error) {
	raw, err := t.store.Rows(ctx, t.name)
	if err != nil {
		return 0, err
	}
	if len(raw) < 2 {
		return 0, nil
	}
	cols := headerNames(raw[0])
	keep := make([][]any, 0, len(raw)-1)
	removed := 0
	for i, r := range raw[1:] {
		if blank(r) {
			continue
		}
		row := toRow(cols, r)
		row[PosKey] = i + 1
		if match(row) {
			removed++
			continue
		}
		keep = append(keep, r)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := t.replace(ctx, raw[0], keep); err != nil {
		return 0, fmt.Errorf("rewrite %s: %w", t.name, err)
	}
	return removed, nil
}

// replace clears the tab and writes it back. A failed write-back is tagged
// domain.ErrPartialWrite since the tab is left empty or short.
func (t *Table) replace(ctx context.Context, header []any, rows [][]any) error {
	if err := t.store.Clear(ctx, t.name); err != nil {
		return err
	}
	all := make([][]any, 0, len(rows)+1)
	if len(header) > 0 {
		all = append(all, header)
	}
	all = append(all, rows...)
	if err := t.store.Append(ctx, t.name, all); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPartialWrite, err)
	}
	return nil
}

func headerNames(h []any) []string {
	cols := make([]string, len(h))
	for i, v := range h {
		cols[i] = CellString(v)
	}
	return cols
}

func toRow(cols []string, r []any) Row {
	row := make(Row, len(cols))
	for i, c := range cols {
		if c == "" || c == PosKey {
			continue
		}
		if _, dup := row[c]; dup {
			continue
		}
		if i < len(r) && r[i] != nil {
			row[c] = r[i]
		} else {
			row[c] = ""
		}
	}
	return row
}

func blank(r []any) bool {
	for _, v := range r {
		if CellString(v) != "" {
			return false
		}
	}
	return true
}

func sameHeader(got []any, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if CellString(got[i]) != want[i] {
			return false
		}
	}
	return true
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
