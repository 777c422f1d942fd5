package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"
)

// HTTPDispatcher отправляет синтезированное событие на вход вебхука GitHub.
// Используется webhook_url цели, а если он пуст - адрес агента по умолчанию.
type HTTPDispatcher struct {
	client     *http.Client
	defaultURL string
	fallback   service.Dispatcher
}

// NewHTTPDispatcher создает диспетчер. agentURL - базовый адрес агента,
// к нему добавляется /webhook/github.
func NewHTTPDispatcher(agentURL string) *HTTPDispatcher {
	defaultURL := ""
	if agentURL != "" {
		defaultURL = strings.TrimRight(agentURL, "/") + "/webhook/github"
	}
	return &HTTPDispatcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		defaultURL: defaultURL,
	}
}

// WithFallback задает диспетчер для целей без адреса, когда адрес агента
// тоже не задан.
func (d *HTTPDispatcher) WithFallback(fallback service.Dispatcher) *HTTPDispatcher {
	d.fallback = fallback
	return d
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, target models.PollTarget, event models.PullRequestEvent) error {
	url := target.WebhookURL
	if url == "" {
		url = d.defaultURL
	}
	if url == "" {
		if d.fallback != nil {
			return d.fallback.Dispatch(ctx, target, event)
		}
		return fmt.Errorf("no webhook url for %s", target.FullName())
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	if target.Secret != "" {
		req.Header.Set("X-Hub-Signature-256", service.SignPayload(body, target.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// DirectDispatcher вызывает обработчик вебхука GitHub в том же процессе.
type DirectDispatcher struct {
	github *service.GitHubService
}

func NewDirectDispatcher(github *service.GitHubService) *DirectDispatcher {
	return &DirectDispatcher{github: github}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, target models.PollTarget, event models.PullRequestEvent) error {
	result := d.github.HandlePullRequestEvent(ctx, event)
	if result.Status == "error" {
		return fmt.Errorf("pull request analysis failed for %s: %s%s", target.FullName(), result.Reason, result.Error)
	}
	return nil
}
