package domain

import (
	"iter"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a session conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptContext is the structured input handed to the language model.
type PromptContext struct {
	SystemInstructions string `json:"system_instructions"`
	History            []Turn `json:"history"`
	Question           string `json:"question"`
	Context            string `json:"context"`
}

// UserMessage renders the retrieved context and the question as the final
// user turn of a chat completion.
func (p PromptContext) UserMessage() string {
	var b strings.Builder
	b.WriteString("Notices:\n")
	b.WriteString(p.Context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(p.Question)
	return b.String()
}

// ChatRequest is one question asked within a session.
type ChatRequest struct {
	SessionID string       `json:"session_id,omitempty"`
	Question  string       `json:"question"`
	Filter    SearchFilter `json:"-"`
	K         int          `json:"k,omitempty"`
}

// ChatReply pairs the retrieval outcome with a lazy answer stream.
type ChatReply struct {
	SessionID string
	Retrieval *RetrievalResult
	Level     ConfidenceLevel
	Stream    iter.Seq2[string, error]
}
