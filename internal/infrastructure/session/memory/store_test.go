package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

func TestGetCreatesEmptySessionAndAppendKeepsOrder(t *testing.T) {
	store := New(time.Hour, 0)
	ctx := context.Background()

	turns, err := store.Get(ctx, "s1")
	if err != nil || len(turns) != 0 {
		t.Fatalf("expected empty history, got %v, %v", turns, err)
	}
	_ = store.Append(ctx, "s1", domain.Turn{Role: domain.RoleUser, Content: "q"}, domain.Turn{Role: domain.RoleAssistant, Content: "a"})

	turns, _ = store.Get(ctx, "s1")
	if len(turns) != 2 || turns[0].Content != "q" || turns[1].Content != "a" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
	turns[0].Content = "mutated"
	again, _ := store.Get(ctx, "s1")
	if again[0].Content != "q" {
		t.Fatalf("Get must return a copy")
	}
}

func TestAppendTrimsToMaxTurns(t *testing.T) {
	store := New(0, 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = store.Append(ctx, "s1", domain.Turn{Role: domain.RoleUser, Content: fmt.Sprint(i)})
	}
	turns, _ := store.Get(ctx, "s1")
	if len(turns) != 3 || turns[0].Content != "2" {
		t.Fatalf("expected last 3 turns, got %+v", turns)
	}
}

func TestSessionsExpireAfterTTL(t *testing.T) {
	store := New(time.Minute, 0)
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()

	_ = store.Append(ctx, "s1", domain.Turn{Role: domain.RoleUser, Content: "q"})
	current = current.Add(30 * time.Second)
	if turns, _ := store.Get(ctx, "s1"); len(turns) != 1 {
		t.Fatalf("session expired too early")
	}

	current = current.Add(2 * time.Minute)
	if store.size() != 0 {
		t.Fatalf("expected no live sessions")
	}
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected sweep to remove 1 session, got %d", removed)
	}
	if turns, _ := store.Get(ctx, "s1"); len(turns) != 0 {
		t.Fatalf("expired session must start empty, got %+v", turns)
	}
}

func TestEvictRemovesSession(t *testing.T) {
	store := New(time.Hour, 0)
	ctx := context.Background()
	_ = store.Append(ctx, "s1", domain.Turn{Role: domain.RoleUser, Content: "q"})
	_ = store.Evict(ctx, "s1")
	if store.size() != 0 {
		t.Fatalf("expected session removed")
	}
}

func TestConcurrentAppend(t *testing.T) {
	store := New(time.Hour, 1000)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(ctx, "shared", domain.Turn{Role: domain.RoleUser, Content: "x"})
			_, _ = store.Get(ctx, "shared")
		}()
	}
	wg.Wait()
	turns, _ := store.Get(ctx, "shared")
	if len(turns) != 20 {
		t.Fatalf("expected 20 turns, got %d", len(turns))
	}
}
