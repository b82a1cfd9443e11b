package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marco/myflix/internal/metadata"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertThenGetDetail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	movie := metadata.Movie{
		ID:          550,
		Title:       "Fight Club",
		Overview:    "An insomniac office worker and a devil-may-care soap maker form an underground fight club.",
		ReleaseDate: "1999-10-15",
		PosterPath:  "/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg",
	}
	if err := store.InsertDetail(ctx, movie); err != nil {
		t.Fatalf("InsertDetail failed: %v", err)
	}

	got, err := store.GetDetail(ctx, 550)
	if err != nil {
		t.Fatalf("GetDetail failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0] != movie {
		t.Errorf("expected %+v, got %+v", movie, got[0])
	}
}

func TestGetDetail_Miss(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetDetail(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetDetail failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected miss, got %+v", got)
	}
}

func TestInsertDetail_DuplicateFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertDetail(ctx, metadata.Movie{ID: 1, Title: "First"}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.InsertDetail(ctx, metadata.Movie{ID: 1, Title: "Second"}); err == nil {
		t.Error("expected duplicate insert to fail")
	}

	got, _ := store.GetDetail(ctx, 1)
	if len(got) != 1 || got[0].Title != "First" {
		t.Errorf("original entry should be kept, got %+v", got)
	}
}

func TestGetAllAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertDetail(ctx,
		metadata.Movie{ID: 3, Title: "C"},
		metadata.Movie{ID: 1, Title: "A"},
	); err != nil {
		t.Fatalf("InsertDetail failed: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != 1 || all[1].ID != 3 {
		t.Errorf("expected ids [1 3], got %+v", all)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	all, _ = store.GetAll(ctx)
	if len(all) != 0 {
		t.Errorf("expected empty cache after Clear, got %d entries", len(all))
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := first.InsertDetail(ctx, metadata.Movie{ID: 9, Title: "Persisted"}); err != nil {
		t.Fatalf("InsertDetail failed: %v", err)
	}
	first.Close()

	second, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	got, err := second.GetDetail(ctx, 9)
	if err != nil || len(got) != 1 || got[0].Title != "Persisted" {
		t.Errorf("expected persisted entry, got %+v (err %v)", got, err)
	}
}
