package bot

import (
	"fmt"
	"strings"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"
)

// Лимит Telegram - 4096 символов. Экранирование MarkdownV2 может удвоить
// длину, поэтому отчеты режутся до экранирования на части вдвое меньше.
const (
	maxMessageRunes = 4000
	maxReportRunes  = maxMessageRunes / 2
)

func statusIcon(status models.IncidentStatus) string {
	switch status {
	case models.StatusDown, models.StatusError:
		return "🔴"
	case models.StatusUp:
		return "🟢"
	case models.StatusMaintenance:
		return "🛠"
	default:
		return "❔"
	}
}

// formatReport возвращает части сообщения в MarkdownV2. Заголовок только в
// первой части.
func formatReport(report *service.IncidentReport) []string {
	inc := report.Incident

	var header strings.Builder
	header.WriteString(fmt.Sprintf("%s *%s: %s*\n", statusIcon(inc.Status), escapeMarkdown(inc.MonitorName), escapeMarkdown(string(inc.Status))))
	header.WriteString(fmt.Sprintf("∙ *Тип:* `%s`\n", escapeMarkdown(inc.MonitorType)))
	header.WriteString(fmt.Sprintf("∙ *URL:* %s\n", escapeMarkdown(inc.URLOrNA())))
	header.WriteString(fmt.Sprintf("∙ *Анализ:* `%s`\n", escapeMarkdown(string(report.Analysis.Strategy))))
	if report.Relay.Success {
		header.WriteString("∙ *VPS:* ✅\n")
	} else {
		header.WriteString(fmt.Sprintf("∙ *VPS:* ❌ %s\n", escapeMarkdown(report.Relay.Error)))
	}
	header.WriteString("\n")

	chunks := chunkText(report.Analysis.Report, maxReportRunes)
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		text := escapeMarkdown(chunk)
		if i == 0 {
			text = header.String() + text
		}
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		parts = append(parts, header.String())
	}
	return parts
}

func formatRecent(records []models.LogRecord) string {
	if len(records) == 0 {
		return "Инцидентов пока нет."
	}
	var b strings.Builder
	b.WriteString("🕒 Последние инциденты:\n\n")
	for _, r := range records {
		name, _ := r.Metadata["monitor_name"].(string)
		status, _ := r.Metadata["status"].(string)
		strategy, _ := r.Metadata["analysis_type"].(string)
		if name == "" {
			name = firstLine(r.Content)
		}
		fmt.Fprintf(&b, "%s %s - %s", r.Timestamp, name, status)
		if strategy != "" {
			fmt.Fprintf(&b, " (%s)", strategy)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// chunkText режет текст на части не длиннее n символов, по возможности по
// переводу строки.
func chunkText(s string, n int) []string {
	runes := []rune(s)
	var parts []string
	for len(runes) > n {
		cut := n
		for i := n; i > n/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(",
		"\\(", ")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>",
		"#", "\\#", "+", "\\+", "-", "\\-", "=", "\\=", "|",
		"\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
	)
	return replacer.Replace(s)
}
