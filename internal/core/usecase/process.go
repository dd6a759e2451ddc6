package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
	"github.com/kirillkom/campus-notice-rag/internal/core/scoring"
)

// IndexNoticeUseCase turns one submitted notice into a stored parent document
// plus embedded fragments that reference it.
type IndexNoticeUseCase struct {
	cleaner  ports.BodyCleaner
	chunker  ports.Chunker
	embedder ports.Embedder
	index    ports.FragmentIndexer
	docs     ports.DocumentStore
}

func NewIndexNoticeUseCase(
	cleaner ports.BodyCleaner,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.FragmentIndexer,
	docs ports.DocumentStore,
) *IndexNoticeUseCase {
	return &IndexNoticeUseCase{
		cleaner:  cleaner,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		docs:     docs,
	}
}

func (uc *IndexNoticeUseCase) IndexNotice(ctx context.Context, raw domain.Document) error {
	doc := uc.normalize(raw)
	if doc.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "index notice", errors.New("document id is required"))
	}
	if doc.Body == "" {
		return domain.WrapError(domain.ErrInvalidInput, "index notice", errors.New("empty document body"))
	}

	fragments, err := uc.chunk(doc.Body)
	if err != nil {
		return err
	}

	vectors, err := uc.embed(ctx, fragments)
	if err != nil {
		return err
	}

	// The parent goes in first so every indexed fragment resolves.
	if err := uc.docs.PutMany(ctx, []domain.Document{doc}); err != nil {
		return fmt.Errorf("store parent document: %w", err)
	}

	if err := uc.index.IndexFragments(ctx, &doc, fragments, vectors); err != nil {
		return fmt.Errorf("index fragments: %w", err)
	}
	return nil
}

func (uc *IndexNoticeUseCase) normalize(raw domain.Document) domain.Document {
	doc := raw
	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		doc.ID = strings.TrimSpace(doc.OriginalID)
	}
	if uc.cleaner != nil {
		doc.Title = uc.cleaner.Clean(doc.Title)
		doc.Body = uc.cleaner.Clean(doc.Body)
	}
	doc.Title = strings.TrimSpace(doc.Title)
	doc.Body = strings.TrimSpace(doc.Body)
	return NormalizeNotice(doc)
}

// NormalizeNotice derives the notice type from the original index prefix and
// maps dates onto the sentinels the recency scorer understands.
func NormalizeNotice(doc domain.Document) domain.Document {
	if doc.Category == "" {
		doc.Category = CategoryForOriginalID(doc.OriginalID)
	}

	date := strings.TrimSpace(doc.Date)
	switch {
	case doc.Category == domain.CategoryCourse:
		if doc.CourseID == "" {
			doc.CourseID = date
		}
		doc.Date = domain.DateAlways
	case date == "":
		doc.Date = domain.DateUnknown
	default:
		doc.Date = scoring.NormalizeDate(date)
	}

	names := make([]string, 0, len(doc.AttachmentNames))
	for _, name := range doc.AttachmentNames {
		name = strings.TrimSpace(name)
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	doc.AttachmentNames = names
	doc.HasAttachment = len(names) > 0
	return doc
}

// CategoryForOriginalID maps ids such as "univ_notice_123" to a notice type.
func CategoryForOriginalID(originalID string) string {
	idx := strings.LastIndex(originalID, "_")
	if idx <= 0 {
		return "general"
	}
	switch prefix := originalID[:idx]; prefix {
	case "univ_notice":
		return domain.CategoryUniversityNotice
	case "notice":
		return domain.CategoryDepartmentNotice
	case "course":
		return domain.CategoryCourse
	default:
		return prefix
	}
}

func (uc *IndexNoticeUseCase) chunk(text string) ([]string, error) {
	fragments := uc.chunker.Split(text)
	if len(fragments) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero fragments"))
	}
	return fragments, nil
}

func (uc *IndexNoticeUseCase) embed(ctx context.Context, fragments []string) ([][]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, fragments)
	if err != nil {
		return nil, fmt.Errorf("embed fragments: %w", err)
	}
	if len(vectors) != len(fragments) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed fragments",
			fmt.Errorf("vectors/fragments mismatch: %d/%d", len(vectors), len(fragments)),
		)
	}
	return vectors, nil
}
