package poller

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"homelab-agent/internal/models"
)

const defaultTargetsFile = `# Конфигурация GitHub polling для Homelab Agent
# Формат: owner/repo:branch:webhook_url:secret
# webhook_url и secret необязательны, без webhook_url событие уходит агенту.

# Примеры:
# microsoft/vscode:main:https://your-domain.com/webhook/github:your_secret
# username/project:develop::your_secret

# Добавьте свои репозитории ниже:
`

// LoadTargets читает файл репозиториев. Отсутствующий файл создается с
// шаблоном и дает пустой список.
func LoadTargets(path string, logger *slog.Logger) ([]models.PollTarget, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create config dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultTargetsFile), 0o644); err != nil {
			return nil, fmt.Errorf("failed to create default targets file: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open targets file: %w", err)
	}
	defer f.Close()
	return ParseTargets(f, logger)
}

// ParseTargets разбирает строки owner/repo:branch:webhook_url:secret.
// Пустые строки и комментарии пропускаются, некорректные строки логируются
// и тоже пропускаются. Ошибка возвращается только при сбое чтения.
func ParseTargets(r io.Reader, logger *slog.Logger) ([]models.PollTarget, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var targets []models.PollTarget
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		target, err := parseTarget(line)
		if err != nil {
			logger.Warn("poller: skipping invalid targets line", "line", lineNo, "error", err)
			continue
		}
		targets = append(targets, target)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets: %w", err)
	}
	return targets, nil
}

func parseTarget(line string) (models.PollTarget, error) {
	parts := strings.SplitN(line, ":", 3)
	owner, repo, ok := strings.Cut(parts[0], "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return models.PollTarget{}, fmt.Errorf("invalid repository %q, want owner/repo", parts[0])
	}

	target := models.PollTarget{Owner: owner, Repo: repo}
	if len(parts) > 1 {
		target.Branch = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		target.WebhookURL, target.Secret = splitURLSecret(strings.TrimSpace(parts[2]))
	}
	if target.WebhookURL != "" {
		if u, err := url.Parse(target.WebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			return models.PollTarget{}, fmt.Errorf("invalid webhook url %q", target.WebhookURL)
		}
	}
	return target, nil
}

// splitURLSecret отделяет секрет после последнего двоеточия. URL может сам
// содержать двоеточия (схема, порт), поэтому хвост считается секретом только
// если остаток - полный URL, а хвост не похож на порт или путь.
func splitURLSecret(rest string) (string, string) {
	if strings.HasPrefix(rest, ":") {
		return "", rest[1:]
	}
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return rest, ""
	}
	head, tail := rest[:idx], rest[idx+1:]
	u, err := url.Parse(head)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return rest, ""
	}
	if tail == "" {
		return head, ""
	}
	if strings.Contains(tail, "/") || isDigits(tail) {
		return rest, ""
	}
	return head, tail
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
