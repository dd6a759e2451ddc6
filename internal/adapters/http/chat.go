package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Category  string `json:"category"`
	K         int    `json:"k"`
	Stream    *bool  `json:"stream"`
}

func (req chatRequest) streaming() bool {
	return req.Stream == nil || *req.Stream
}

type chatSources struct {
	SessionID  string                 `json:"session_id"`
	Sources    []string               `json:"sources"`
	Confidence float64                `json:"confidence"`
	Level      domain.ConfidenceLevel `json:"level"`
	Degraded   bool                   `json:"degraded,omitempty"`
	Diagnostic string                 `json:"diagnostic,omitempty"`
}

type chatResponse struct {
	chatSources
	Answer string `json:"answer"`
}

func (rt *Router) chatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeInvalidJSON, "invalid json")
		return
	}

	ctx := r.Context()
	started := time.Now()
	reply, err := rt.chat.Ask(ctx, domain.ChatRequest{
		SessionID: req.SessionID,
		Question:  req.Question,
		Filter:    domain.SearchFilter{Category: req.Category},
		K:         req.K,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	rt.observeRAG("chat", len(reply.Retrieval.Results), started)

	sources := chatSources{
		SessionID:  reply.SessionID,
		Sources:    reply.Retrieval.SourceLines(sourceLines),
		Confidence: reply.Retrieval.Confidence,
		Level:      reply.Level,
		Degraded:   reply.Retrieval.Degraded,
		Diagnostic: reply.Retrieval.Diagnostic,
	}

	if !req.streaming() {
		var answer strings.Builder
		for delta, err := range reply.Stream {
			if err != nil {
				writeError(w, err)
				return
			}
			answer.WriteString(delta)
		}
		rt.remember(ctx, reply.SessionID, req.Question, answer.String())
		writeJSON(w, http.StatusOK, chatResponse{chatSources: sources, Answer: answer.String()})
		return
	}

	events, err := newEventStream(w)
	if err != nil {
		rt.logger.Error("chat_stream_unavailable", "session_id", reply.SessionID, "error", err)
		return
	}
	if err := events.send("sources", sources); err != nil {
		return
	}

	var answer strings.Builder
	for delta, err := range reply.Stream {
		if err != nil {
			// Partial output already sent stays with the client.
			rt.logger.Warn("chat_stream_failed", "session_id", reply.SessionID, "error", err)
			_ = events.send("error", errorBody{Error: err.Error(), Code: domain.Kind(err)})
			return
		}
		answer.WriteString(delta)
		if err := events.send("delta", map[string]string{"text": delta}); err != nil {
			return
		}
	}

	rt.remember(ctx, reply.SessionID, req.Question, answer.String())
	_ = events.send("done", map[string]string{"session_id": reply.SessionID})
}

func (rt *Router) remember(ctx context.Context, sessionID, question, answer string) {
	if err := rt.chat.Remember(ctx, sessionID, question, answer); err != nil {
		rt.logger.Warn("session_remember_failed", "session_id", sessionID, "error", err)
	}
}

func (rt *Router) forgetSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.chat.Forget(r.Context(), r.PathValue("session_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// eventStream writes server-sent events, flushing after each one.
type eventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming is not supported by response writer: %w", err)
	}
	return &eventStream{w: w, rc: rc}, nil
}

func (s *eventStream) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return s.rc.Flush()
}
