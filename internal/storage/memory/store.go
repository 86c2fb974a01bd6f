// Package memory keeps tabs in process memory. It backs STORE_BACKEND=memory
// and stands in for the spreadsheet in tests.
package memory

import (
	"context"
	"sync"

	"roomshare/internal/domain"
)

type Store struct {
	mu    sync.RWMutex
	order []string
	tabs  map[string][][]any
}

// New creates a store with the given (empty) tabs. Unknown tabs produce
// *domain.TableNotFoundError like the remote service does.
func New(tabs ...string) *Store {
	s := &Store{tabs: make(map[string][][]any, len(tabs))}
	for _, t := range tabs {
		s.AddTab(t)
	}
	return s
}

func (s *Store) AddTab(tab string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[tab]; ok {
		return
	}
	s.order = append(s.order, tab)
	s.tabs[tab] = nil
}

// Seed replaces a tab's content, creating it if needed.
func (s *Store) Seed(tab string, rows [][]any) {
	s.AddTab(tab)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[tab] = copyRows(rows)
}

func (s *Store) Tabs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *Store) Header(_ context.Context, tab string) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.tabs[tab]
	if !ok {
		return nil, &domain.TableNotFoundError{Tab: tab}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return append([]any(nil), rows[0]...), nil
}

func (s *Store) Rows(_ context.Context, tab string) ([][]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.tabs[tab]
	if !ok {
		return nil, &domain.TableNotFoundError{Tab: tab}
	}
	return copyRows(rows), nil
}

func (s *Store) Append(_ context.Context, tab string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tabs[tab]
	if !ok {
		return &domain.TableNotFoundError{Tab: tab}
	}
	s.tabs[tab] = append(cur, copyRows(rows)...)
	return nil
}

func (s *Store) InsertHeader(_ context.Context, tab string, header []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tabs[tab]
	if !ok {
		return &domain.TableNotFoundError{Tab: tab}
	}
	s.tabs[tab] = append(copyRows([][]any{header}), cur...)
	return nil
}

func (s *Store) Clear(_ context.Context, tab string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[tab]; !ok {
		return &domain.TableNotFoundError{Tab: tab}
	}
	s.tabs[tab] = nil
	return nil
}

// copyRows duplicates rows and normalizes numbers to float64, which is how
// the spreadsheet hands them back.
func copyRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		cp := make([]any, len(r))
		for j, v := range r {
			cp[j] = normalize(v)
		}
		out[i] = cp
	}
	return out
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
