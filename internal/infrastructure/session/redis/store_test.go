package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

func TestEncodeDecodeTurnsSkipsGarbage(t *testing.T) {
	values, err := encodeTurns([]domain.Turn{{Role: domain.RoleUser, Content: "학사 일정"}})
	if err != nil {
		t.Fatalf("encodeTurns() error: %v", err)
	}
	raw := []string{values[0].(string), "not json", `{"content":"no role"}`}

	turns := decodeTurns(raw)
	if len(turns) != 1 || turns[0].Content != "학사 일정" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestSessionKey(t *testing.T) {
	if got := sessionKey("abc"); got != "cnrag:session:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestStoreAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := NewClient(addr, "", 0)
	defer client.Close()

	store := New(client, time.Minute, 3)
	ctx := context.Background()
	id := uuid.NewString()
	defer func() { _ = store.Evict(ctx, id) }()

	for _, content := range []string{"1", "2", "3", "4"} {
		if err := store.Append(ctx, id, domain.Turn{Role: domain.RoleUser, Content: content}); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}
	turns, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(turns) != 3 || turns[0].Content != "2" {
		t.Fatalf("expected capped history, got %+v", turns)
	}
	if err := store.Evict(ctx, id); err != nil {
		t.Fatalf("Evict() error: %v", err)
	}
	if turns, _ := store.Get(ctx, id); len(turns) != 0 {
		t.Fatalf("expected evicted session, got %+v", turns)
	}
}
