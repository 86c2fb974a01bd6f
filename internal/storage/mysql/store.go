// Package mysql stores tabs in MySQL for STORE_BACKEND=mysql. It keeps the
// spreadsheet's row model so the app runs unchanged against either backend.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"roomshare/internal/domain"
)

type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

// Migrate creates the tables if needed and registers the given tabs.
func (s *Store) Migrate(ctx context.Context, tabs ...string) error {
	for _, stmt := range schemaSQL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, t := range tabs {
		if err := s.AddTab(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AddTab(ctx context.Context, tab string) error {
	if _, err := s.db.ExecContext(ctx, insertTabSQL, tab); err != nil {
		return storeErr("add_tab", tab, err)
	}
	return nil
}

func (s *Store) Tabs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, listTabsSQL)
	if err != nil {
		return nil, storeErr("tabs", "", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storeErr("tabs", "", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("tabs", "", err)
	}
	return out, nil
}

func (s *Store) Header(ctx context.Context, tab string) ([]any, error) {
	if err := s.exists(ctx, s.db, tab); err != nil {
		return nil, err
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx, selectFirstRowSQL, tab).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("header", tab, err)
	}
	return decodeCells(tab, raw)
}

func (s *Store) Rows(ctx context.Context, tab string) ([][]any, error) {
	if err := s.exists(ctx, s.db, tab); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, selectRowsSQL, tab)
	if err != nil {
		return nil, storeErr("rows", tab, err)
	}
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, storeErr("rows", tab, err)
		}
		cells, err := decodeCells(tab, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("rows", tab, err)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, tab string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, "append", tab, func(tx *sql.Tx) error {
		var last int
		if err := tx.QueryRowContext(ctx, maxPosSQL, tab).Scan(&last); err != nil {
			return err
		}
		return insertRows(ctx, tx, tab, last+1, rows)
	})
}

func (s *Store) InsertHeader(ctx context.Context, tab string, header []any) error {
	return s.inTx(ctx, "insert_header", tab, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, shiftRowsSQL, tab); err != nil {
			return err
		}
		return insertRows(ctx, tx, tab, 1, [][]any{header})
	})
}

func (s *Store) Clear(ctx context.Context, tab string) error {
	return s.inTx(ctx, "clear", tab, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, clearRowsSQL, tab)
		return err
	})
}

// ---- internals ----

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exists(ctx context.Context, q querier, tab string) error {
	var one int
	err := q.QueryRowContext(ctx, tabExistsSQL, tab).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.TableNotFoundError{Tab: tab}
	}
	if err != nil {
		return storeErr("lookup", tab, err)
	}
	return nil
}

// inTx runs fn with the tab row locked, so concurrent writers of one tab
// apply one after another.
func (s *Store) inTx(ctx context.Context, op, tab string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(op, tab, err)
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	err = tx.QueryRowContext(ctx, lockTabSQL, tab).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.TableNotFoundError{Tab: tab}
	}
	if err != nil {
		return storeErr(op, tab, err)
	}
	if err := fn(tx); err != nil {
		return storeErr(op, tab, err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr(op, tab, err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, tab string, start int, rows [][]any) error {
	const maxBatch = 500
	for off := 0; off < len(rows); off += maxBatch {
		end := off + maxBatch
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[off:end]
		ph := make([]string, len(batch))
		args := make([]any, 0, len(batch)*3)
		for i, r := range batch {
			if r == nil {
				r = []any{}
			}
			b, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode row: %w", err)
			}
			ph[i] = "(?, ?, ?)"
			args = append(args, tab, start+off+i, string(b))
		}
		if _, err := tx.ExecContext(ctx, insertRowsPrefix+strings.Join(ph, ", "), args...); err != nil {
			return err
		}
	}
	return nil
}

func decodeCells(tab string, raw []byte) ([]any, error) {
	var cells []any
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, storeErr("decode", tab, err)
	}
	return cells, nil
}

func storeErr(op, tab string, err error) error {
	return &domain.RemoteStoreError{Op: "mysql." + op, Tab: tab, Err: err}
}
