package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

type retrieverFake struct {
	gotK      int
	gotFilter domain.SearchFilter
	result    *domain.RetrievalResult
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, filter domain.SearchFilter, k int) (*domain.RetrievalResult, error) {
	f.gotK = k
	f.gotFilter = filter
	return f.result, nil
}

type chatFake struct {
	remembered string
	streamErr  error
	diagnostic string
}

func (f *chatFake) Ask(_ context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	streamErr := f.streamErr
	return &domain.ChatReply{
		SessionID: "s1",
		Retrieval: &domain.RetrievalResult{
			Results:    []domain.RankedResult{{Document: domain.Document{Title: "Dorm", Date: "2025-02-01"}}},
			Confidence: 0.65,
			Diagnostic: f.diagnostic,
		},
		Level: domain.ConfidenceHigh,
		Stream: func(yield func(string, error) bool) {
			if streamErr != nil {
				yield("", streamErr)
				return
			}
			yield("Apply by "+req.Question, nil)
		},
	}, nil
}

func (f *chatFake) Remember(_ context.Context, _, _, answer string) error {
	f.remembered = answer
	return nil
}

func (f *chatFake) Forget(context.Context, string) error { return nil }

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("expected tool content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestSearchNoticesTool(t *testing.T) {
	retriever := &retrieverFake{result: &domain.RetrievalResult{
		Results: []domain.RankedResult{{
			Document:   domain.Document{ID: "n1", Title: "Exam", Body: "  midterm   exam\nschedule "},
			FinalScore: 0.7,
		}},
		Confidence: 0.82,
	}}
	tools := NewTools(retriever, nil, 50)

	result, err := tools.searchNotices(context.Background(), callRequest("search_notices", map[string]any{
		"query":    "exam",
		"category": "학과공지",
		"k":        float64(7),
	}))
	if err != nil {
		t.Fatalf("searchNotices() error: %v", err)
	}
	if retriever.gotK != 7 || retriever.gotFilter.Category != "학과공지" {
		t.Fatalf("unexpected retrieve args k=%d filter=%+v", retriever.gotK, retriever.gotFilter)
	}

	var payload searchPayload
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Level != domain.ConfidenceVeryHigh || len(payload.Notices) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Notices[0].Excerpt != "midterm exam schedule" {
		t.Fatalf("unexpected excerpt %q", payload.Notices[0].Excerpt)
	}
}

func TestSearchNoticesRequiresQuery(t *testing.T) {
	tools := NewTools(&retrieverFake{}, nil, 0)
	result, err := tools.searchNotices(context.Background(), callRequest("search_notices", map[string]any{}))
	if err != nil {
		t.Fatalf("searchNotices() error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error result")
	}
}

func TestAskNoticesTool(t *testing.T) {
	chat := &chatFake{}
	tools := NewTools(&retrieverFake{}, chat, 50)

	result, err := tools.askNotices(context.Background(), callRequest("ask_notices", map[string]any{"question": "Friday"}))
	if err != nil {
		t.Fatalf("askNotices() error: %v", err)
	}
	text := resultText(t, result)
	if !strings.HasPrefix(text, "Apply by Friday") || !strings.Contains(text, "- Dorm (2025-02-01)") {
		t.Fatalf("unexpected answer text:\n%s", text)
	}
	if chat.remembered != "Apply by Friday" {
		t.Fatalf("expected answer remembered, got %q", chat.remembered)
	}
}

func TestAskNoticesReportsDiagnostic(t *testing.T) {
	chat := &chatFake{diagnostic: "document search failed: qdrant down"}
	tools := NewTools(&retrieverFake{}, chat, 50)

	result, err := tools.askNotices(context.Background(), callRequest("ask_notices", map[string]any{"question": "q"}))
	if err != nil {
		t.Fatalf("askNotices() error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "diagnostic: document search failed: qdrant down") {
		t.Fatalf("expected diagnostic in answer text:\n%s", text)
	}

	chat.diagnostic = ""
	result, err = tools.askNotices(context.Background(), callRequest("ask_notices", map[string]any{"question": "q"}))
	if err != nil {
		t.Fatalf("askNotices() error: %v", err)
	}
	if strings.Contains(resultText(t, result), "diagnostic:") {
		t.Fatalf("unexpected diagnostic line without a failure")
	}
}

func TestAskNoticesStreamFailure(t *testing.T) {
	chat := &chatFake{streamErr: errors.New("llm down")}
	tools := NewTools(&retrieverFake{}, chat, 50)

	result, err := tools.askNotices(context.Background(), callRequest("ask_notices", map[string]any{"question": "q"}))
	if err != nil {
		t.Fatalf("askNotices() error: %v", err)
	}
	if !result.IsError || chat.remembered != "" {
		t.Fatalf("expected tool error without history, got %+v", result)
	}
}

func TestServerRegistersTools(t *testing.T) {
	if NewTools(&retrieverFake{}, &chatFake{}, 10).Server() == nil {
		t.Fatal("expected server")
	}
}
