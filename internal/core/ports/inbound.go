package ports

import (
	"context"
	"iter"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

// NoticeRetriever is the inbound contract of the re-ranking pipeline.
type NoticeRetriever interface {
	Retrieve(ctx context.Context, query string, filter domain.SearchFilter, k int) (*domain.RetrievalResult, error)
}

// ChatService answers questions within a session.
type ChatService interface {
	Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)
	Remember(ctx context.Context, sessionID, question, answer string) error
	Forget(ctx context.Context, sessionID string) error
}

// NoticeIndexer indexes a single parent document.
type NoticeIndexer interface {
	IndexNotice(ctx context.Context, doc domain.Document) error
}

// Answerer renders ranked documents into a streamed answer.
type Answerer interface {
	Compose(ctx context.Context, question string, docs []domain.Document, history []domain.Turn) iter.Seq2[string, error]
}

// NoticeSubmitter queues a notice for indexing.
type NoticeSubmitter interface {
	Submit(ctx context.Context, doc domain.Document) (*domain.Document, error)
}
