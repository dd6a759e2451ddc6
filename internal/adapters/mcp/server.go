package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
)

const (
	serverName    = "campus-notice-rag"
	serverVersion = "1.0.0"
)

// Tools exposes notice search and question answering as MCP tools.
type Tools struct {
	retriever ports.NoticeRetriever
	chat      ports.ChatService
	searchK   int
}

func NewTools(retriever ports.NoticeRetriever, chat ports.ChatService, searchK int) *Tools {
	if searchK <= 0 {
		searchK = 50
	}
	return &Tools{retriever: retriever, chat: chat, searchK: searchK}
}

func (t *Tools) Server() *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("search_notices",
		mcp.WithDescription("Search university notices and course listings. Results are ranked by semantic similarity blended with recency."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language search query")),
		mcp.WithString("category", mcp.Description("Notice type filter: 대학공지, 학과공지, 교과목/수강 or empty for all")),
		mcp.WithNumber("k", mcp.Description("Maximum number of notices to return")),
	), t.searchNotices)

	if t.chat != nil {
		s.AddTool(mcp.NewTool("ask_notices",
			mcp.WithDescription("Answer a question using the indexed notices."),
			mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer")),
			mcp.WithString("session_id", mcp.Description("Conversation session to continue")),
			mcp.WithString("category", mcp.Description("Notice type filter")),
		), t.askNotices)
	}
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (t *Tools) ServeStdio() error {
	return server.ServeStdio(t.Server())
}

type searchHit struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Date     string  `json:"date"`
	Category string  `json:"category"`
	URL      string  `json:"url"`
	Score    float64 `json:"score"`
	Excerpt  string  `json:"excerpt"`
}

type searchPayload struct {
	Confidence float64                `json:"confidence"`
	Level      domain.ConfidenceLevel `json:"level"`
	Diagnostic string                 `json:"diagnostic,omitempty"`
	Notices    []searchHit            `json:"notices"`
}

func (t *Tools) searchNotices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k := request.GetInt("k", t.searchK)
	filter := domain.SearchFilter{Category: request.GetString("category", "")}

	result, err := t.retriever.Retrieve(ctx, query, filter, k)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload := searchPayload{
		Confidence: result.Confidence,
		Level:      domain.ConfidenceLevelFor(result.Confidence),
		Diagnostic: result.Diagnostic,
		Notices:    make([]searchHit, 0, len(result.Results)),
	}
	for _, res := range result.Results {
		payload.Notices = append(payload.Notices, searchHit{
			ID:       res.Document.ID,
			Title:    res.Document.Title,
			Date:     res.Document.Date,
			Category: res.Document.Category,
			URL:      res.Document.URL,
			Score:    res.FinalScore,
			Excerpt:  excerpt(res.Document.Body, 280),
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (t *Tools) askNotices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reply, err := t.chat.Ask(ctx, domain.ChatRequest{
		SessionID: request.GetString("session_id", ""),
		Question:  question,
		Filter:    domain.SearchFilter{Category: request.GetString("category", "")},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var answer strings.Builder
	for delta, err := range reply.Stream {
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		answer.WriteString(delta)
	}
	if err := t.chat.Remember(ctx, reply.SessionID, question, answer.String()); err != nil {
		return nil, fmt.Errorf("remember turn: %w", err)
	}

	var b strings.Builder
	b.WriteString(answer.String())
	if reply.Retrieval.Diagnostic != "" {
		fmt.Fprintf(&b, "\n\ndiagnostic: %s", reply.Retrieval.Diagnostic)
	}
	if lines := reply.Retrieval.SourceLines(3); len(lines) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, line := range lines {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "\nconfidence: %s (%.2f)\nsession_id: %s", reply.Level, reply.Retrieval.Confidence, reply.SessionID)
	return mcp.NewToolResultText(b.String()), nil
}

func excerpt(body string, limit int) string {
	runes := []rune(strings.Join(strings.Fields(body), " "))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}
