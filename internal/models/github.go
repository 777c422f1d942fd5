package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// PollTarget - одна строка файла репозиториев демона опроса.
type PollTarget struct {
	Owner      string
	Repo       string
	Branch     string
	WebhookURL string
	Secret     string
}

// FullName возвращает owner/repo.
func (t PollTarget) FullName() string {
	return t.Owner + "/" + t.Repo
}

// PullRequest - необходимый минимум полей PR. Raw хранит объект целиком,
// чтобы переслать его агенту без потерь.
type PullRequest struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	State     string `json:"state"`
	HTMLURL   string `json:"html_url"`
	UpdatedAt string `json:"updated_at"`
	Base      struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Raw json.RawMessage `json:"-"`
}

// PRKey - ключ состояния опроса.
func PRKey(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}

// NewerThan сообщает, что updated_at строго позже сохраненной отметки.
// Нераспознаваемые даты сравниваются как строки.
func NewerThan(updatedAt, lastSeen string) bool {
	if lastSeen == "" {
		return true
	}
	a, errA := time.Parse(time.RFC3339, updatedAt)
	b, errB := time.Parse(time.RFC3339, lastSeen)
	if errA == nil && errB == nil {
		return a.After(b)
	}
	return updatedAt > lastSeen
}

// GitHubOwner, GitHubRepository и PullRequestEvent - форма события
// pull_request, общая для настоящих вебхуков GitHub и демона опроса.
type GitHubOwner struct {
	Login string `json:"login"`
}

type GitHubRepository struct {
	Owner GitHubOwner `json:"owner"`
	Name  string      `json:"name"`
}

type PullRequestEvent struct {
	Action      string           `json:"action"`
	PullRequest json.RawMessage  `json:"pull_request"`
	Repository  GitHubRepository `json:"repository"`
}

// PRNumber извлекает номер PR из события.
func (e PullRequestEvent) PRNumber() int {
	var pr struct {
		Number int `json:"number"`
	}
	_ = json.Unmarshal(e.PullRequest, &pr)
	return pr.Number
}
