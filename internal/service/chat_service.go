package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"homelab-agent/internal/models"

	"github.com/google/uuid"
)

// ChatResult - ответ агента в рамках одной сессии.
type ChatResult struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

// ChatService передает сообщения пользователя агенту и журналирует диалог.
type ChatService struct {
	agent  Agent
	logs   LogRepository
	logger *slog.Logger
}

func NewChatService(agent Agent, logs LogRepository, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{agent: agent, logs: logs, logger: logger}
}

// Chat открывает новую сессию на одно сообщение.
func (c *ChatService) Chat(ctx context.Context, message string) (ChatResult, error) {
	return c.ChatInSession(ctx, uuid.NewString(), message)
}

// ChatInSession продолжает диалог в заданной сессии, например в чате Telegram.
func (c *ChatService) ChatInSession(ctx context.Context, sessionID, message string) (ChatResult, error) {
	reply, err := c.invoke(ctx, sessionID, message)
	if err != nil {
		c.append(ctx, models.KindChatError, "system", fmt.Sprintf("Ошибка в чате: %v", err))
		return ChatResult{SessionID: sessionID}, fmt.Errorf("agent invocation failed: %w", err)
	}

	c.append(ctx, models.KindChatRequest, sessionID, message)
	c.append(ctx, models.KindChatResponse, sessionID, reply)
	return ChatResult{SessionID: sessionID, Response: reply}, nil
}

func (c *ChatService) invoke(ctx context.Context, sessionID, message string) (string, error) {
	if c.agent == nil {
		return "", ErrAgentUnavailable
	}
	reply, err := c.agent.Invoke(ctx, sessionID, []ChatMessage{{Role: "user", Content: message}})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply.Content) == "" {
		return "Не удалось получить ответ от агента", nil
	}
	return reply.Content, nil
}

func (c *ChatService) append(ctx context.Context, kind, source, content string) {
	if err := c.logs.Append(ctx, &models.LogRecord{Kind: kind, Source: source, Content: content}); err != nil {
		c.logger.Error("failed to append log record", "kind", kind, "error", err)
	}
}
