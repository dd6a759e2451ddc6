package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
)

// SubmitNoticeUseCase validates a notice and queues it for the index worker.
type SubmitNoticeUseCase struct {
	queue ports.NoticeQueue
	now   func() time.Time
}

func NewSubmitNoticeUseCase(queue ports.NoticeQueue) *SubmitNoticeUseCase {
	return &SubmitNoticeUseCase{queue: queue, now: time.Now}
}

func (uc *SubmitNoticeUseCase) Submit(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	if strings.TrimSpace(doc.Title) == "" && strings.TrimSpace(doc.Body) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit notice", errors.New("title or body is required"))
	}
	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		doc.ID = StableNoticeID(doc.OriginalID)
	}
	if doc.SubmittedAt.IsZero() {
		doc.SubmittedAt = uc.now().UTC()
	}

	if err := uc.queue.PublishNotice(ctx, doc); err != nil {
		return nil, fmt.Errorf("publish notice: %w", err)
	}
	return &doc, nil
}

// StableNoticeID keeps ids stable across re-submissions of the same original
// record so a rebuild overwrites instead of duplicating.
func StableNoticeID(originalID string) string {
	originalID = strings.TrimSpace(originalID)
	if originalID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("notice:"+originalID)).String()
}
