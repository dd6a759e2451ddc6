package usecase

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

type retrieverFake struct {
	result *domain.RetrievalResult
	err    error
	k      int
	filter domain.SearchFilter
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, filter domain.SearchFilter, k int) (*domain.RetrievalResult, error) {
	f.k = k
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type answererFake struct {
	docs    []domain.Document
	history []domain.Turn
}

func (f *answererFake) Compose(_ context.Context, _ string, docs []domain.Document, history []domain.Turn) iter.Seq2[string, error] {
	f.docs = docs
	f.history = history
	return func(yield func(string, error) bool) {
		yield("answer", nil)
	}
}

type sessionStoreFake struct {
	turns   map[string][]domain.Turn
	getErr  error
	evicted []string
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{turns: map[string][]domain.Turn{}}
}

func (f *sessionStoreFake) Get(_ context.Context, id string) ([]domain.Turn, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.turns[id], nil
}

func (f *sessionStoreFake) Append(_ context.Context, id string, turns ...domain.Turn) error {
	f.turns[id] = append(f.turns[id], turns...)
	return nil
}

func (f *sessionStoreFake) Evict(_ context.Context, id string) error {
	f.evicted = append(f.evicted, id)
	delete(f.turns, id)
	return nil
}

func TestChatAskUsesHistoryAndRetrieval(t *testing.T) {
	retriever := &retrieverFake{result: &domain.RetrievalResult{
		Results:    []domain.RankedResult{{Document: domain.Document{ID: "p1"}, SemanticSimilarity: 0.7}},
		Confidence: 0.7,
	}}
	answerer := &answererFake{}
	sessions := newSessionStoreFake()
	sessions.turns["s1"] = []domain.Turn{{Role: domain.RoleUser, Content: "hi"}}
	uc := NewChatUseCase(retriever, answerer, sessions, 7, nil)

	reply, err := uc.Ask(context.Background(), domain.ChatRequest{SessionID: "s1", Question: " deadline? ", Filter: domain.SearchFilter{Category: "학과공지"}})
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if reply.SessionID != "s1" || reply.Level != domain.ConfidenceHigh {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if retriever.k != 7 || retriever.filter.Category != "학과공지" {
		t.Fatalf("unexpected retrieval args k=%d filter=%+v", retriever.k, retriever.filter)
	}
	if len(answerer.docs) != 1 || len(answerer.history) != 1 {
		t.Fatalf("composer got docs=%d history=%d", len(answerer.docs), len(answerer.history))
	}
	answer, err := collect(t, reply.Stream)
	if err != nil || answer != "answer" {
		t.Fatalf("unexpected stream result %q, %v", answer, err)
	}
}

func TestChatAskCreatesSessionAndToleratesHistoryFailure(t *testing.T) {
	sessions := newSessionStoreFake()
	sessions.getErr = errors.New("redis down")
	uc := NewChatUseCase(&retrieverFake{result: &domain.RetrievalResult{}}, &answererFake{}, sessions, 0, nil)

	reply, err := uc.Ask(context.Background(), domain.ChatRequest{Question: "q"})
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if reply.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
	if reply.Level != domain.ConfidenceLow {
		t.Fatalf("expected low confidence, got %s", reply.Level)
	}
}

func TestChatAskValidatesQuestion(t *testing.T) {
	uc := NewChatUseCase(&retrieverFake{}, &answererFake{}, newSessionStoreFake(), 0, nil)
	if _, err := uc.Ask(context.Background(), domain.ChatRequest{Question: "  "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestChatRememberAndForget(t *testing.T) {
	sessions := newSessionStoreFake()
	uc := NewChatUseCase(&retrieverFake{}, &answererFake{}, sessions, 0, nil)

	if err := uc.Remember(context.Background(), "s1", "q", "a"); err != nil {
		t.Fatalf("Remember() error: %v", err)
	}
	turns := sessions.turns["s1"]
	if len(turns) != 2 || turns[0].Role != domain.RoleUser || turns[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected turns: %+v", turns)
	}
	if err := uc.Forget(context.Background(), "s1"); err != nil {
		t.Fatalf("Forget() error: %v", err)
	}
	if len(sessions.evicted) != 1 || sessions.turns["s1"] != nil {
		t.Fatalf("session not evicted")
	}
	if err := uc.Forget(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
