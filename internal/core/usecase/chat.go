package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
)

type ChatUseCase struct {
	retriever ports.NoticeRetriever
	composer  ports.Answerer
	sessions  ports.SessionStore
	answerK   int
	logger    *slog.Logger
}

func NewChatUseCase(
	retriever ports.NoticeRetriever,
	composer ports.Answerer,
	sessions ports.SessionStore,
	answerK int,
	logger *slog.Logger,
) *ChatUseCase {
	if answerK <= 0 {
		answerK = DefaultRetrievalOptions().DefaultK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		retriever: retriever,
		composer:  composer,
		sessions:  sessions,
		answerK:   answerK,
		logger:    logger,
	}
}

// Ask retrieves notices for the question and returns a lazy answer stream.
// The caller records the finished answer with Remember.
func (uc *ChatUseCase) Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat ask", errors.New("question is required"))
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		uc.logger.Warn("session_history_unavailable", "session_id", sessionID, "error", err)
		history = nil
	}

	k := req.K
	if k <= 0 {
		k = uc.answerK
	}
	retrieval, err := uc.retriever.Retrieve(ctx, question, req.Filter, k)
	if err != nil {
		return nil, err
	}

	return &domain.ChatReply{
		SessionID: sessionID,
		Retrieval: retrieval,
		Level:     domain.ConfidenceLevelFor(retrieval.Confidence),
		Stream:    uc.composer.Compose(ctx, question, retrieval.Documents(), history),
	}, nil
}

func (uc *ChatUseCase) Remember(ctx context.Context, sessionID, question, answer string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "chat remember", errors.New("session id is required"))
	}
	return uc.sessions.Append(ctx, sessionID,
		domain.Turn{Role: domain.RoleUser, Content: question},
		domain.Turn{Role: domain.RoleAssistant, Content: answer},
	)
}

func (uc *ChatUseCase) Forget(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "chat forget", errors.New("session id is required"))
	}
	return uc.sessions.Evict(ctx, sessionID)
}
