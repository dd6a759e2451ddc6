package ollama

import "github.com/kirillkom/campus-notice-rag/internal/core/domain"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChatMessages(prompt domain.PromptContext) []chatMessage {
	messages := make([]chatMessage, 0, len(prompt.History)+2)
	if prompt.SystemInstructions != "" {
		messages = append(messages, chatMessage{Role: "system", Content: prompt.SystemInstructions})
	}
	for _, turn := range prompt.History {
		if turn.Content == "" {
			continue
		}
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: domain.RoleUser, Content: prompt.UserMessage()})
	return messages
}
