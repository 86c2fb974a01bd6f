package memory_test

import (
	"context"
	"errors"
	"testing"

	"roomshare/internal/domain"
	"roomshare/internal/storage/memory"
)

func TestStore_InsertHeaderAndAppend(t *testing.T) {
	s := memory.New("favorites")
	ctx := context.Background()

	if err := s.Append(ctx, "favorites", [][]any{{"alice", 1}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.InsertHeader(ctx, "favorites", []any{"username", "property_id"}); err != nil {
		t.Fatalf("InsertHeader: %v", err)
	}
	rows, _ := s.Rows(ctx, "favorites")
	if len(rows) != 2 || rows[0][0] != "username" || rows[1][1] != float64(1) {
		t.Fatalf("unexpected rows: %v", rows)
	}

	// callers cannot mutate stored rows through returned slices
	rows[1][0] = "mallory"
	again, _ := s.Rows(ctx, "favorites")
	if again[1][0] != "alice" {
		t.Fatalf("store leaked internal slice")
	}
}

func TestStore_UnknownTab(t *testing.T) {
	s := memory.New()
	_, err := s.Rows(context.Background(), "ghost")
	var tnf *domain.TableNotFoundError
	if !errors.As(err, &tnf) {
		t.Fatalf("expected TableNotFoundError, got %v", err)
	}
}
