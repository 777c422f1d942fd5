package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"homelab-agent/internal/models"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrAgentUnavailable = errors.New("agent is not configured")
	signaturePrefix     = "sha256="
	handledPRActions    = map[string]bool{"opened": true, "synchronize": true}
)

// SignPayload возвращает значение заголовка X-Hub-Signature-256.
func SignPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// PRAnalysisResult - ответ на событие pull_request.
type PRAnalysisResult struct {
	Status   string `json:"status"`
	PR       string `json:"pr,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GitHubService обрабатывает события pull_request: просит агента сделать
// ревью и пишет результат в журнал.
type GitHubService struct {
	agent  Agent
	logs   LogRepository
	secret string
	logger *slog.Logger
}

// NewGitHubService создает сервис. Пустой secret отключает проверку подписи.
func NewGitHubService(agent Agent, logs LogRepository, secret string, logger *slog.Logger) *GitHubService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHubService{agent: agent, logs: logs, secret: secret, logger: logger}
}

// VerifySignature проверяет HMAC тела запроса, если задан секрет.
func (s *GitHubService) VerifySignature(body []byte, signature string) error {
	if s.secret == "" {
		return nil
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return fmt.Errorf("%w: invalid signature format", ErrInvalidSignature)
	}
	if !hmac.Equal([]byte(signature), []byte(SignPayload(body, s.secret))) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

// HandlePullRequestEvent запускает анализ PR для действий opened и synchronize.
func (s *GitHubService) HandlePullRequestEvent(ctx context.Context, event models.PullRequestEvent) PRAnalysisResult {
	if !handledPRActions[event.Action] {
		return PRAnalysisResult{Status: "ignored", Reason: fmt.Sprintf("Action %s not handled", event.Action)}
	}

	owner := event.Repository.Owner.Login
	repo := event.Repository.Name
	number := event.PRNumber()
	if owner == "" || repo == "" || number == 0 {
		return PRAnalysisResult{Status: "error", Reason: "Missing pull_request or repository data"}
	}

	pr := models.PRKey(owner, repo, number)
	sessionID := fmt.Sprintf("github_pr_%s_%s_%d", owner, repo, number)
	question := fmt.Sprintf("анализ кода %s/%s %d", owner, repo, number)

	answer, err := s.invoke(ctx, sessionID, question)
	if err != nil {
		s.logger.Error("pull request analysis failed", "pr", pr, "error", err)
		s.append(ctx, models.KindWebhookError, sessionID, fmt.Sprintf("Error: %v", err))
		return PRAnalysisResult{Status: "error", PR: pr, Error: err.Error()}
	}

	s.append(ctx, models.KindWebhook, sessionID, answer)
	s.logger.Info("pull request analyzed", "pr", pr)
	return PRAnalysisResult{Status: "success", PR: pr, Response: answer}
}

func (s *GitHubService) invoke(ctx context.Context, sessionID, question string) (string, error) {
	if s.agent == nil {
		return "", ErrAgentUnavailable
	}
	reply, err := s.agent.Invoke(ctx, sessionID, []ChatMessage{{Role: "user", Content: question}})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply.Content) == "" {
		return "Анализ не выполнен", nil
	}
	return reply.Content, nil
}

func (s *GitHubService) append(ctx context.Context, kind, source, content string) {
	if err := s.logs.Append(ctx, &models.LogRecord{Kind: kind, Source: source, Content: content}); err != nil {
		s.logger.Error("failed to append log record", "kind", kind, "error", err)
	}
}
