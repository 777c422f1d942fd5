package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"homelab-agent/internal/models"
)

// DefaultBaseURL - адрес публичного GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// Client - операции GitHub API, нужные демону опроса.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient создает клиент GitHub. Пустой baseURL означает DefaultBaseURL.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// HasToken сообщает, задан ли токен.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// ListOpenPullRequests возвращает до 10 открытых PR, последние обновленные
// первыми. Каждый PR хранит исходный JSON для пересылки.
func (c *Client) ListOpenPullRequests(ctx context.Context, owner, repo string) ([]models.PullRequest, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&sort=updated&direction=desc&per_page=10",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull requests: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GitHub API error for %s/%s (status %d): %s", owner, repo, resp.StatusCode, string(body))
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode pull requests: %w", err)
	}

	prs := make([]models.PullRequest, 0, len(raw))
	for _, item := range raw {
		var pr models.PullRequest
		if err := json.Unmarshal(item, &pr); err != nil {
			return nil, fmt.Errorf("failed to decode pull request: %w", err)
		}
		pr.Raw = item
		prs = append(prs, pr)
	}
	return prs, nil
}
