package usecase

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
)

// NoResultsMessage is yielded instead of a model answer when retrieval found nothing.
const NoResultsMessage = "No matching notices were found. Try a more specific question, " +
	"for example with a department name or a period."

const DefaultHistoryTurns = 5

const contextSeparator = "\n\n---\n\n"

const noticeAssistantInstructions = `You are an assistant that answers questions about university notices.

Rules:
1. Answer only from the notices in the context. Do not invent facts.
2. When notices conflict, prefer the most recent one and say so.
3. Quote dates, deadlines and places exactly as written.
4. Mention the notice title and its URL for every fact you use.
5. If the context does not contain the answer, say that it is not in the notices and suggest contacting the responsible office.
6. Notices dated "상시" are permanently valid; "날짜미상" means the date is unknown.`

// AnswerComposer renders ranked documents and the session history into a
// prompt and streams the model's answer.
type AnswerComposer struct {
	model        ports.LanguageModel
	historyTurns int
	instructions string
	timeout      time.Duration
}

func NewAnswerComposer(model ports.LanguageModel, historyTurns int) *AnswerComposer {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &AnswerComposer{
		model:        model,
		historyTurns: historyTurns,
		instructions: noticeAssistantInstructions,
	}
}

// WithTimeout bounds every model stream, measured from the moment the
// stream is first ranged. Zero disables the bound.
func (c *AnswerComposer) WithTimeout(timeout time.Duration) *AnswerComposer {
	c.timeout = timeout
	return c
}

// Compose never calls the model when docs is empty.
func (c *AnswerComposer) Compose(
	ctx context.Context,
	question string,
	docs []domain.Document,
	history []domain.Turn,
) iter.Seq2[string, error] {
	if len(docs) == 0 {
		return func(yield func(string, error) bool) {
			yield(NoResultsMessage, nil)
		}
	}
	prompt := domain.PromptContext{
		SystemInstructions: c.instructions,
		History:            lastTurns(history, c.historyTurns),
		Question:           question,
		Context:            RenderContext(docs),
	}
	return func(yield func(string, error) bool) {
		streamCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			streamCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		for delta, err := range c.model.Stream(streamCtx, prompt) {
			if !yield(delta, err) {
				return
			}
		}
	}
}

// RenderContext formats documents as numbered blocks for the prompt.
func RenderContext(docs []domain.Document) string {
	blocks := make([]string, 0, len(docs))
	for i, doc := range docs {
		var b strings.Builder
		fmt.Fprintf(&b, "[Document %d]\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", orDefault(doc.Title, "untitled"))
		fmt.Fprintf(&b, "Date: %s\n", orDefault(doc.Date, domain.DateUnknown))
		fmt.Fprintf(&b, "Category: %s\n", orDefault(doc.Category, "unclassified"))
		if doc.Department != "" {
			fmt.Fprintf(&b, "Department: %s\n", doc.Department)
		}
		if doc.HasAttachment && len(doc.AttachmentNames) > 0 {
			fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(doc.AttachmentNames, ", "))
		}
		fmt.Fprintf(&b, "URL: %s\n\n", orDefault(doc.URL, "none"))
		b.WriteString("Content:\n")
		b.WriteString(strings.TrimSpace(doc.Body))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, contextSeparator)
}

func lastTurns(history []domain.Turn, n int) []domain.Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
