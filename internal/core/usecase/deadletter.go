package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
)

// DeadLetterUseCase parks notices that failed indexing and pushes them back
// onto the queue on demand.
type DeadLetterUseCase struct {
	store  ports.DeadLetterStore
	queue  ports.NoticeQueue
	logger *slog.Logger
	now    func() time.Time
}

func NewDeadLetterUseCase(store ports.DeadLetterStore, queue ports.NoticeQueue, logger *slog.Logger) *DeadLetterUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadLetterUseCase{store: store, queue: queue, logger: logger, now: time.Now}
}

func (uc *DeadLetterUseCase) Park(ctx context.Context, doc domain.Document, cause error) error {
	letter := domain.DeadLetter{
		Key:      doc.ID,
		Document: doc,
		FailedAt: uc.now().UTC(),
	}
	if cause != nil {
		letter.Error = cause.Error()
	}
	if err := uc.store.Save(ctx, letter); err != nil {
		return fmt.Errorf("save dead letter: %w", err)
	}
	uc.logger.Warn("notice_dead_lettered", "doc_id", doc.ID, "error", letter.Error)
	return nil
}

func (uc *DeadLetterUseCase) List(ctx context.Context) ([]domain.DeadLetter, error) {
	return uc.store.List(ctx)
}

// Replay republishes every parked notice. A letter is removed only after its
// publish succeeded; the first failure stops the replay.
func (uc *DeadLetterUseCase) Replay(ctx context.Context) (int, error) {
	letters, err := uc.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list dead letters: %w", err)
	}

	replayed := 0
	for _, letter := range letters {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		doc := letter.Document
		doc.SubmittedAt = uc.now().UTC()
		if err := uc.queue.PublishNotice(ctx, doc); err != nil {
			return replayed, fmt.Errorf("republish %s: %w", letter.Key, err)
		}
		if err := uc.store.Remove(ctx, letter.Key); err != nil {
			return replayed, fmt.Errorf("remove dead letter %s: %w", letter.Key, err)
		}
		replayed++
	}
	if replayed > 0 {
		uc.logger.Info("dead_letters_replayed", "count", replayed)
	}
	return replayed, nil
}
