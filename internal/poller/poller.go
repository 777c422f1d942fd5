// Package poller периодически проверяет GitHub на новые и обновленные pull
// request'ы и передает их на вход вебхука GitHub.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"
)

// Config - параметры демона опроса.
type Config struct {
	// Interval между проходами. По умолчанию 5 минут.
	Interval time.Duration
	// Backoff после неудачного прохода. По умолчанию 1 минута.
	Backoff time.Duration
	// RepoDelay - пауза между репозиториями внутри прохода. По умолчанию
	// 1 секунда, отрицательное значение отключает паузу.
	RepoDelay time.Duration
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Minute
	}
	if c.RepoDelay < 0 {
		c.RepoDelay = 0
	} else if c.RepoDelay == 0 {
		c.RepoDelay = time.Second
	}
}

// TargetSource возвращает текущий список репозиториев. Вызывается на каждом
// проходе, поэтому правки файла применяются без перезапуска.
type TargetSource func() ([]models.PollTarget, error)

// FileTargets читает репозитории из файла на каждом проходе.
func FileTargets(path string, logger *slog.Logger) TargetSource {
	return func() ([]models.PollTarget, error) {
		return LoadTargets(path, logger)
	}
}

// Poller отправляет PR, у которых updated_at новее сохраненной отметки.
// PR помечается просмотренным после попытки отправки, поэтому неудачная
// отправка не повторяется, пока PR не изменится.
type Poller struct {
	targets    TargetSource
	lister     service.PullRequestLister
	dispatcher service.Dispatcher
	store      *SeenStore
	seen       map[string]string
	config     Config
	logger     *slog.Logger
}

// New создает Poller.
func New(targets TargetSource, lister service.PullRequestLister, dispatcher service.Dispatcher, store *SeenStore, cfg Config, logger *slog.Logger) *Poller {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		targets:    targets,
		lister:     lister,
		dispatcher: dispatcher,
		store:      store,
		config:     cfg,
		logger:     logger,
	}
}

// Run выполняет проходы с заданным интервалом до отмены ctx. После
// неудачного прохода ждет Backoff, цикл при этом не останавливается.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller: started", "interval", p.config.Interval)
	for {
		wait := p.config.Interval
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("poller: sweep failed", "error", err, "backoff", p.config.Backoff)
			wait = p.config.Backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("poller: stopped")
			return
		case <-timer.C:
		}
	}
}

// RunOnce выполняет один проход по всем репозиториям. Ошибка возвращается
// только если проход невозможен целиком (состояние, список репозиториев).
// Ошибки отдельных репозиториев логируются.
func (p *Poller) RunOnce(ctx context.Context) error {
	if p.seen == nil {
		seen, err := p.store.Load()
		if err != nil {
			return err
		}
		p.seen = seen
	}

	targets, err := p.targets()
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}

	for i, target := range targets {
		if i > 0 && !sleepCtx(ctx, p.config.RepoDelay) {
			return ctx.Err()
		}
		if err := p.sweepRepository(ctx, target); err != nil {
			p.logger.Warn("poller: repository failed", "repo", target.FullName(), "error", err)
		}
	}
	return nil
}

func (p *Poller) sweepRepository(ctx context.Context, target models.PollTarget) error {
	prs, err := p.lister.ListOpenPullRequests(ctx, target.Owner, target.Repo)
	if err != nil {
		return err
	}

	dispatched := 0
	for _, pr := range prs {
		if target.Branch != "" && pr.Base.Ref != "" && pr.Base.Ref != target.Branch {
			continue
		}
		key := models.PRKey(target.Owner, target.Repo, pr.Number)
		if !models.NewerThan(pr.UpdatedAt, p.seen[key]) {
			continue
		}

		p.logger.Info("poller: new or updated pull request", "pr", key, "updated_at", pr.UpdatedAt)
		event, err := syntheticEvent(target, pr)
		if err != nil {
			return err
		}
		if err := p.dispatcher.Dispatch(ctx, target, event); err != nil {
			p.logger.Error("poller: dispatch failed", "pr", key, "error", err)
		}
		p.seen[key] = pr.UpdatedAt
		dispatched++
	}

	if dispatched == 0 {
		return nil
	}
	return p.store.Save(p.seen)
}

// syntheticEvent собирает то же тело, что GitHub присылает для pull_request.opened.
func syntheticEvent(target models.PollTarget, pr models.PullRequest) (models.PullRequestEvent, error) {
	raw := pr.Raw
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(pr); err != nil {
			return models.PullRequestEvent{}, fmt.Errorf("failed to encode pull request: %w", err)
		}
	}
	return models.PullRequestEvent{
		Action:      "opened",
		PullRequest: raw,
		Repository: models.GitHubRepository{
			Owner: models.GitHubOwner{Login: target.Owner},
			Name:  target.Repo,
		},
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
