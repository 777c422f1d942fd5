package service

import (
	"context"

	"homelab-agent/internal/models"
)

// LogRepository определяет интерфейс журнала. Записи только добавляются.
type LogRepository interface {
	Append(ctx context.Context, record *models.LogRecord) error
	// QueryByKind возвращает последние записи, kind "" означает все типы.
	QueryByKind(ctx context.Context, kind string, limit int) ([]models.LogRecord, error)
	// SearchContent ищет подстроку в содержимом, без ранжирования.
	SearchContent(ctx context.Context, query string, k int) ([]models.LogRecord, error)
	RecentContext(ctx context.Context, k int) ([]models.ContextEntry, error)
	Ping(ctx context.Context) error
}

// ModelClient - интерфейс языковой модели.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RelayClient доставляет инцидент на удаленный приемник. Ошибки доставки
// возвращаются значением, а не error.
type RelayClient interface {
	Relay(ctx context.Context, envelope models.RelayEnvelope) models.RelayOutcome
}

// ChatMessage - одно сообщение диалога с агентом.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Agent - диалоговый агент. Сессия задает контекст разговора.
type Agent interface {
	Invoke(ctx context.Context, sessionID string, messages []ChatMessage) (ChatMessage, error)
}

// Dispatcher передает синтезированное событие PR на вход вебхука GitHub.
type Dispatcher interface {
	Dispatch(ctx context.Context, target models.PollTarget, event models.PullRequestEvent) error
}

// PullRequestLister возвращает открытые PR репозитория, новые первыми.
type PullRequestLister interface {
	ListOpenPullRequests(ctx context.Context, owner, repo string) ([]models.PullRequest, error)
}
