package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"homelab-agent/internal/models"
)

const (
	searchResultLimit = 5
	statisticsWindow  = 20
	searchPreviewRune = 200
)

// truncateRunes обрезает строку до n символов и добавляет "...", если она
// была длиннее.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// ToContextEntries превращает записи журнала в укороченный контекст.
func ToContextEntries(records []models.LogRecord) []models.ContextEntry {
	entries := make([]models.ContextEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, models.ContextEntry{
			ID:        r.ID,
			Kind:      r.Kind,
			Source:    r.Source,
			Content:   truncateRunes(r.Content, previewRunes),
			Timestamp: r.Timestamp,
		})
	}
	return entries
}

// statisticsTypeBuckets проверяются по порядку, первое совпадение побеждает.
var statisticsTypeBuckets = []string{"docker", "http", "tcp", "ping", "dns"}

// ComputeStatistics считает агрегаты по записям incident_analysis.
// Остальные записи игнорируются.
func ComputeStatistics(entries []models.ContextEntry) models.Statistics {
	stats := models.Statistics{
		MonitorTypes: map[string]int{},
		Sources:      map[string]int{},
	}
	for _, e := range entries {
		if e.Kind != models.KindIncidentAnalysis {
			continue
		}
		stats.TotalIncidents++

		switch {
		case strings.Contains(e.Content, "Статус: down"):
			stats.DownIncidents++
		case strings.Contains(e.Content, "Статус: up"):
			stats.UpIncidents++
		}

		if bucket := typeBucket(e.Content); bucket != "" {
			stats.MonitorTypes[bucket]++
		}

		source := e.Source
		if source == "" {
			source = "unknown"
		}
		stats.Sources[source]++
	}
	if stats.TotalIncidents > 0 {
		stats.RecoveryPercent = float64(stats.UpIncidents) / float64(stats.TotalIncidents) * 100
	}
	return stats
}

// typeBucket берет тип из строки "Тип:", а если ее нет - ищет по всему тексту.
func typeBucket(content string) string {
	haystack := strings.ToLower(content)
	for _, line := range strings.Split(content, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "Тип:"); ok {
			haystack = strings.ToLower(v)
			break
		}
	}
	for _, bucket := range statisticsTypeBuckets {
		if strings.Contains(haystack, bucket) {
			return bucket
		}
	}
	return ""
}

// HistoryService - операции чтения истории инцидентов для агента, бота и API.
type HistoryService struct {
	logs   LogRepository
	logger *slog.Logger
}

func NewHistoryService(logs LogRepository, logger *slog.Logger) *HistoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryService{logs: logs, logger: logger}
}

// Logs возвращает последние записи журнала, kind "" - все типы.
func (h *HistoryService) Logs(ctx context.Context, kind string, limit int) ([]models.LogRecord, error) {
	return h.logs.QueryByKind(ctx, kind, limit)
}

// Search возвращает записи, содержащие подстроку query.
func (h *HistoryService) Search(ctx context.Context, query string, k int) ([]models.LogRecord, error) {
	return h.logs.SearchContent(ctx, query, k)
}

// Statistics считает агрегаты по последним записям журнала.
func (h *HistoryService) Statistics(ctx context.Context) (models.Statistics, error) {
	entries, err := h.logs.RecentContext(ctx, statisticsWindow)
	if err != nil {
		return models.Statistics{}, err
	}
	return ComputeStatistics(entries), nil
}

// SearchIncidentHistory - текстовый результат поиска для агента и бота.
// Ошибки возвращаются строкой с префиксом "❌".
func (h *HistoryService) SearchIncidentHistory(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "❌ Ошибка поиска по истории: пустой запрос"
	}

	records, err := h.logs.SearchContent(ctx, query, searchResultLimit)
	if err != nil {
		h.logger.Error("history search failed", "query", query, "error", err)
		return fmt.Sprintf("❌ Ошибка поиска по истории: %v", err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("🔍 По запросу '%s' ничего не найдено.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **Результаты поиска по запросу: '%s'**\n\n", query)
	for i, r := range records {
		source := r.Source
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, source)
		fmt.Fprintf(&b, "Тип: %s\n", r.Kind)
		if name, ok := r.Metadata["monitor_name"].(string); ok && name != "" {
			fmt.Fprintf(&b, "Монитор: %s\n", name)
		}
		if status, ok := r.Metadata["status"].(string); ok && status != "" {
			fmt.Fprintf(&b, "Статус: %s\n", status)
		}
		fmt.Fprintf(&b, "Содержание: %s\n\n", truncateRunes(r.Content, searchPreviewRune))
	}
	return b.String()
}

// IncidentStatistics - текстовая статистика для агента и бота.
func (h *HistoryService) IncidentStatistics(ctx context.Context) string {
	stats, err := h.Statistics(ctx)
	if err != nil {
		h.logger.Error("incident statistics failed", "error", err)
		return fmt.Sprintf("❌ Ошибка получения статистики: %v", err)
	}
	return FormatStatistics(stats)
}

// FormatStatistics печатает статистику. Ключи отсортированы, чтобы вывод
// был стабильным.
func FormatStatistics(stats models.Statistics) string {
	var b strings.Builder
	b.WriteString("📊 **СТАТИСТИКА ПО ИНЦИДЕНТАМ**\n\n")
	fmt.Fprintf(&b, "🔢 **Общее количество:** %d\n", stats.TotalIncidents)
	fmt.Fprintf(&b, "🔴 **Падения (down):** %d\n", stats.DownIncidents)
	fmt.Fprintf(&b, "🟢 **Восстановления (up):** %d\n", stats.UpIncidents)

	b.WriteString("\n🖥️ **Типы мониторов:**\n")
	for _, k := range sortedKeys(stats.MonitorTypes) {
		fmt.Fprintf(&b, "   • %s: %d\n", k, stats.MonitorTypes[k])
	}

	b.WriteString("\n📡 **Источники:**\n")
	for _, k := range sortedKeys(stats.Sources) {
		fmt.Fprintf(&b, "   • %s: %d\n", k, stats.Sources[k])
	}

	if stats.TotalIncidents > 0 {
		fmt.Fprintf(&b, "\n📈 **Процент восстановлений:** %.1f%%", stats.RecoveryPercent)
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
