package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

func openTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "docstore", "notices.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBatchGetIsPositional(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.PutMany(ctx, []domain.Document{
		{ID: "a", Title: "Scholarship", Date: "2024-03-01", Category: domain.CategoryUniversityNotice},
		{ID: "b", Title: "Dormitory", Date: domain.DateAlways},
	})
	if err != nil {
		t.Fatalf("PutMany() error: %v", err)
	}

	docs, err := store.BatchGet(ctx, []string{"b", "missing", "a"})
	if err != nil {
		t.Fatalf("BatchGet() error: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(docs))
	}
	if docs[0] == nil || docs[0].Title != "Dormitory" {
		t.Fatalf("unexpected first entry: %+v", docs[0])
	}
	if docs[1] != nil {
		t.Fatalf("expected nil for missing id, got %+v", docs[1])
	}
	if docs[2] == nil || docs[2].Category != domain.CategoryUniversityNotice {
		t.Fatalf("unexpected third entry: %+v", docs[2])
	}
}

func TestPutManyOverwritesAndValidates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_ = store.PutMany(ctx, []domain.Document{{ID: "a", Title: "old"}})
	_ = store.PutMany(ctx, []domain.Document{{ID: "a", Title: "new"}})

	docs, _ := store.BatchGet(ctx, []string{"a"})
	if docs[0] == nil || docs[0].Title != "new" {
		t.Fatalf("expected overwrite, got %+v", docs[0])
	}
	if n, err := countDocuments(store); err != nil || n != 1 {
		t.Fatalf("expected 1 document, got %d (%v)", n, err)
	}

	if err := store.PutMany(ctx, []domain.Document{{Title: "no id"}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestBatchGetHonorsCanceledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.BatchGet(ctx, []string{"a"}); err == nil {
		t.Fatalf("expected context error")
	}
}

func countDocuments(store *DocumentStore) (int, error) {
	var n int
	err := store.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketDocuments).Stats().KeyN
		return nil
	})
	return n, err
}
