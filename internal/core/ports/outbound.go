package ports

import (
	"context"
	"iter"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

// FragmentIndex performs vector similarity search over document fragments.
// Results are ordered best-first; each fragment carries its raw distance.
type FragmentIndex interface {
	Search(ctx context.Context, query string, topN int, filter domain.SearchFilter) ([]domain.Fragment, error)
}

// FragmentIndexer writes fragments of a parent document into the index.
type FragmentIndexer interface {
	IndexFragments(ctx context.Context, doc *domain.Document, fragments []string, vectors [][]float32) error
}

// DocumentStore maps parent ids to full documents.
type DocumentStore interface {
	// BatchGet is positional: the result has len(ids) entries and nil marks a miss.
	BatchGet(ctx context.Context, ids []string) ([]*domain.Document, error)
	PutMany(ctx context.Context, docs []domain.Document) error
}

// Embedder builds vectors for fragments and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits a document body into fragments.
type Chunker interface {
	Split(text string) []string
}

// BodyCleaner turns raw notice markup into plain text.
type BodyCleaner interface {
	Clean(raw string) string
}

// LanguageModel streams a completion for a structured prompt. The sequence is
// lazy: every range over it issues a new request.
type LanguageModel interface {
	Stream(ctx context.Context, prompt domain.PromptContext) iter.Seq2[string, error]
}

// SessionStore keeps per-session conversation history.
type SessionStore interface {
	// Get returns the history of a session, creating an empty one on first use.
	Get(ctx context.Context, sessionID string) ([]domain.Turn, error)
	Append(ctx context.Context, sessionID string, turns ...domain.Turn) error
	Evict(ctx context.Context, sessionID string) error
}

// NoticeQueue publishes and consumes documents waiting to be indexed.
type NoticeQueue interface {
	PublishNotice(ctx context.Context, doc domain.Document) error
	SubscribeNotices(ctx context.Context, handler func(context.Context, domain.Document) error) error
}

// RetrievalObserver records retrieval outcomes.
type RetrievalObserver interface {
	ObserveRetrieval(outcome string, resultCount int, confidence float64, durationSeconds float64)
}

// DeadLetterStore keeps notices the worker could not index.
type DeadLetterStore interface {
	Save(ctx context.Context, letter domain.DeadLetter) error
	List(ctx context.Context) ([]domain.DeadLetter, error)
	Remove(ctx context.Context, key string) error
}
