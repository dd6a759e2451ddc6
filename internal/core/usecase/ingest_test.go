package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

type noticeQueueFake struct {
	published []domain.Document
	err       error
}

func (f *noticeQueueFake) PublishNotice(_ context.Context, doc domain.Document) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, doc)
	return nil
}

func (f *noticeQueueFake) SubscribeNotices(context.Context, func(context.Context, domain.Document) error) error {
	return errors.New("not implemented")
}

func TestSubmitNoticeAssignsStableID(t *testing.T) {
	queue := &noticeQueueFake{}
	uc := NewSubmitNoticeUseCase(queue)

	first, err := uc.Submit(context.Background(), domain.Document{OriginalID: "notice_1", Title: "t"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	second, err := uc.Submit(context.Background(), domain.Document{OriginalID: "notice_1", Title: "t2"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if first.ID == "" || first.ID != second.ID {
		t.Fatalf("expected stable ids, got %q and %q", first.ID, second.ID)
	}
	if len(queue.published) != 2 {
		t.Fatalf("expected 2 published notices, got %d", len(queue.published))
	}

	explicit, _ := uc.Submit(context.Background(), domain.Document{ID: " keep ", Body: "b"})
	if explicit.ID != "keep" {
		t.Fatalf("explicit id must be kept, got %q", explicit.ID)
	}
}

func TestSubmitNoticeErrors(t *testing.T) {
	uc := NewSubmitNoticeUseCase(&noticeQueueFake{})
	if _, err := uc.Submit(context.Background(), domain.Document{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	uc = NewSubmitNoticeUseCase(&noticeQueueFake{err: errors.New("nats down")})
	if _, err := uc.Submit(context.Background(), domain.Document{Title: "t"}); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestSubmitNoticeStampsSubmissionTime(t *testing.T) {
	queue := &noticeQueueFake{}
	uc := NewSubmitNoticeUseCase(queue)
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return at }

	doc, err := uc.Submit(context.Background(), domain.Document{Title: "t"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if !doc.SubmittedAt.Equal(at) || !queue.published[0].SubmittedAt.Equal(at) {
		t.Fatalf("unexpected submitted_at: %v", doc.SubmittedAt)
	}
}
